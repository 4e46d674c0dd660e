// Package workbench holds the tree instances mounted by one run of the program: a single
// "main" tree or the "good"/"bad" pair compared side by side.
package workbench

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/starford/datatree/internal/apperr"
	"github.com/starford/datatree/internal/storage"
	"github.com/starford/datatree/internal/treeservice"
)

// Modes.
const (
	ModeSingle = "single"
	ModeDual   = "dual"
)

// Instance names one mounted tree and the file it is persisted to.
type Instance struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	Label string `yaml:"label"`
}

// DefaultInstances returns the instances a mode mounts when none are configured.
func DefaultInstances(mode string) []Instance {
	if mode == ModeDual {
		return []Instance{
			{Name: "good", File: "good_datatree.json", Label: "Good DataTree"},
			{Name: "bad", File: "bad_datatree.json", Label: "Bad DataTree"},
		}
	}
	return []Instance{{Name: "main", File: "datatree.json", Label: "DataTree"}}
}

// Workbench is an ordered set of tree services.
type Workbench struct {
	mode     string
	services []*treeservice.Service
	byName   map[string]*treeservice.Service

	mu         sync.Mutex
	lastLoaded string
}

// New creates one service per instance. Services are not opened yet.
func New(mode string, instances []Instance, store storage.Provider, logger *slog.Logger, listener treeservice.Listener) *Workbench {
	if len(instances) == 0 {
		instances = DefaultInstances(mode)
	}
	w := &Workbench{mode: mode, byName: make(map[string]*treeservice.Service, len(instances))}
	for _, inst := range instances {
		label := inst.Label
		if label == "" {
			label = inst.Name
		}
		svc := treeservice.New(inst.Name, inst.File, store,
			treeservice.WithLabel(label),
			treeservice.WithLogger(logger),
			treeservice.WithListener(listener),
		)
		w.services = append(w.services, svc)
		w.byName[inst.Name] = svc
	}
	return w
}

// Open reads every instance file. The first failure aborts.
func (w *Workbench) Open(ctx context.Context) error {
	for _, svc := range w.services {
		if err := svc.Open(ctx); err != nil {
			return fmt.Errorf("open tree %q: %w", svc.Name(), err)
		}
	}
	return nil
}

// Mode returns the configured mode.
func (w *Workbench) Mode() string { return w.mode }

// Services returns the instances in mount order.
func (w *Workbench) Services() []*treeservice.Service { return w.services }

// Names returns the instance names in mount order.
func (w *Workbench) Names() []string {
	names := make([]string, len(w.services))
	for i, svc := range w.services {
		names[i] = svc.Name()
	}
	return names
}

// Get returns the instance called name.
func (w *Workbench) Get(name string) (*treeservice.Service, error) {
	svc, ok := w.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: tree %q", apperr.ErrNotFound, name)
	}
	return svc, nil
}

// Load replaces the tree of instance name with the one stored in file.
func (w *Workbench) Load(ctx context.Context, name, file string) error {
	svc, err := w.Get(name)
	if err != nil {
		return err
	}
	if err := svc.Load(ctx, file); err != nil {
		return err
	}
	if file != "" {
		w.mu.Lock()
		w.lastLoaded = filepath.Base(file)
		w.mu.Unlock()
	}
	return nil
}

// Title is the window heading, naming the last file loaded explicitly.
func (w *Workbench) Title() string {
	title := "DataTree"
	if len(w.services) > 1 {
		title = "Dual DataTree"
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastLoaded != "" {
		title += " - " + w.lastLoaded
	}
	return title
}
