// Package treeservice runs one mounted tree instance: it owns the in-memory tree, the file it
// is persisted to and the outline shown for it, and applies user commands to all three.
package treeservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/starford/datatree/internal/apperr"
	"github.com/starford/datatree/internal/imaging"
	"github.com/starford/datatree/internal/storage"
	"github.com/starford/datatree/internal/tree"
	"github.com/starford/datatree/internal/view"
)

// EventKind names a change published after a successful operation.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
	EventLoaded  EventKind = "loaded"
)

// Event describes a change to one instance.
type Event struct {
	Tree string    `json:"tree"`
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}

// Listener receives events after the service lock is released.
type Listener func(Event)

// Confirmer answers the yes/no question asked before a delete.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Confirmed is a Confirmer for callers that already asked the user.
var Confirmed Confirmer = ConfirmFunc(func(string) bool { return true })

// EntryView is what the entry viewer shows. A broken image does not hide the content.
type EntryView struct {
	Path       string        `json:"path"`
	Content    string        `json:"content"`
	HasImage   bool          `json:"has_image"`
	Image      *imaging.Info `json:"image,omitempty"`
	ImageError string        `json:"image_error,omitempty"`
}

// OutlineRow is a flattened copy of a visible outline row.
type OutlineRow struct {
	Path     string `json:"path"`
	Label    string `json:"label"`
	Folder   bool   `json:"folder"`
	Content  string `json:"content,omitempty"`
	HasImage bool   `json:"has_image,omitempty"`
	Expanded bool   `json:"expanded,omitempty"`
	Depth    int    `json:"depth"`
}

// Service coordinates the tree, its file and its outline.
//
// Every method takes the service lock, so the terminal UI, HTTP handlers, MCP tools and the
// file watcher see one writer at a time.
type Service struct {
	mu sync.Mutex

	name     string
	label    string
	store    storage.Provider
	file     string
	loaded   bool
	tree     *tree.Tree
	outline  *view.Outline
	savedSum string

	logger   *slog.Logger
	listener Listener
}

// Option configures a Service.
type Option func(*Service)

// WithLabel sets the heading shown above the instance.
func WithLabel(label string) Option {
	return func(s *Service) { s.label = label }
}

// WithListener registers the change listener.
func WithListener(fn Listener) Option {
	return func(s *Service) { s.listener = fn }
}

// WithLogger sets the logger; the instance name is attached to every record. A nil logger
// keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a service for the instance name persisted at file. Call Open to read it.
func New(name, file string, store storage.Provider, opts ...Option) *Service {
	s := &Service{
		name:    name,
		label:   name,
		store:   store,
		file:    file,
		tree:    tree.New(),
		outline: view.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("tree", name))
	return s
}

// Name returns the instance name.
func (s *Service) Name() string { return s.name }

// Label returns the instance heading.
func (s *Service) Label() string { return s.label }

// File returns the file the instance is persisted to.
func (s *Service) File() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// LoadedFile returns the base name of a file chosen with Load, or "" if the configured file
// is still in use.
func (s *Service) LoadedFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ""
	}
	return filepath.Base(s.file)
}

// SavedChecksum is the checksum of the file content last read or written by the service.
func (s *Service) SavedChecksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedSum
}

// Open reads the configured file. A missing file starts an empty tree; a malformed one is
// reported and the instance is not usable.
func (s *Service) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(s.file)
}

func (s *Service) loadLocked(file string) error {
	doc, err := storage.LoadTree(s.store, file)
	if err != nil {
		return err
	}
	if doc.Upgraded > 0 {
		s.logger.Info("legacy entries normalized", slog.String("file", file), slog.Int("count", doc.Upgraded))
	}
	s.file = file
	s.tree = doc.Tree
	s.savedSum = storage.Checksum(doc.Raw)
	s.outline.Rebuild(s.tree)
	folders, entries := s.tree.Count()
	s.logger.Info("tree loaded", slog.String("file", file), slog.Int("folders", folders), slog.Int("entries", entries))
	return nil
}

// Load replaces the tree with the one stored in file. An empty file name means the picker
// was cancelled and is a no-op. On failure the current tree stays in place.
func (s *Service) Load(_ context.Context, file string) error {
	if file == "" {
		return nil
	}
	s.mu.Lock()
	if _, err := s.store.Resolve(file); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	err := s.loadLocked(file)
	if err == nil {
		s.loaded = true
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("load file failed", slog.String("file", file), slog.String("error", err.Error()))
		return err
	}
	s.emit(Event{Tree: s.name, Kind: EventLoaded, Path: file})
	return nil
}

// Reload re-reads the current file after it changed on disk. Content identical to what the
// service last read or wrote is ignored. It reports whether the tree was replaced.
func (s *Service) Reload(_ context.Context) (bool, error) {
	s.mu.Lock()
	data, err := s.store.Read(s.file)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", apperr.ErrIO, err)
	}
	if storage.Checksum(data) == s.savedSum {
		s.mu.Unlock()
		return false, nil
	}
	err = s.loadLocked(s.file)
	file := s.file
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	s.emit(Event{Tree: s.name, Kind: EventLoaded, Path: file})
	return true, nil
}

// Migrate writes the tree back so legacy leaves are stored in the current shape.
func (s *Service) Migrate(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := storage.LoadTree(s.store, s.file)
	if err != nil {
		return 0, err
	}
	if doc.Upgraded == 0 {
		return 0, nil
	}
	data, err := storage.SaveTree(s.store, s.file, doc.Tree)
	if err != nil {
		return 0, err
	}
	s.tree = doc.Tree
	s.savedSum = storage.Checksum(data)
	s.outline.Rebuild(s.tree)
	return doc.Upgraded, nil
}

// mutate applies fn to a copy of the tree, persists the copy and only then swaps it in, so a
// failed validation or write leaves both memory and file untouched.
func (s *Service) mutate(kind EventKind, p tree.Path, fn func(t *tree.Tree) error) (Event, error) {
	next := s.tree.Clone()
	if err := fn(next); err != nil {
		return Event{}, err
	}
	data, err := storage.SaveTree(s.store, s.file, next)
	if err != nil {
		s.logger.Error("save tree failed", slog.String("file", s.file), slog.String("error", err.Error()))
		return Event{}, err
	}
	s.tree = next
	s.savedSum = storage.Checksum(data)
	s.outline.Rebuild(next)
	s.logger.Info("tree item "+string(kind), slog.String("path", p.String()))
	return Event{Tree: s.name, Kind: kind, Path: p.String()}, nil
}

func (s *Service) emit(ev Event) {
	if s.listener != nil {
		s.listener(ev)
	}
}

func (s *Service) run(kind EventKind, p tree.Path, fn func(t *tree.Tree) error) error {
	s.mu.Lock()
	ev, err := s.mutate(kind, p, fn)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.emit(ev)
	return nil
}

// AddFolder creates path below parent, creating every missing folder on the way.
func (s *Service) AddFolder(_ context.Context, parent, path string) error {
	pp, err := tree.ParsePath(parent)
	if err != nil {
		return err
	}
	rel, err := tree.ParsePath(path)
	if err != nil {
		return err
	}
	if rel.IsRoot() {
		return fmt.Errorf("%w: folder path cannot be empty", apperr.ErrValidation)
	}
	full := pp.Join(rel...)
	return s.run(EventCreated, full, func(t *tree.Tree) error {
		return t.InsertFolder(full)
	})
}

// AddEntry stores the draft as a new entry. Re-adding an existing entry name replaces it.
func (s *Service) AddEntry(_ context.Context, d *EntryDraft) error {
	parent, err := tree.ParsePath(d.Parent)
	if err != nil {
		return err
	}
	p := parent.Join(d.Name)
	return s.run(EventCreated, p, func(t *tree.Tree) error {
		return t.InsertEntry(parent, d.Name, d.Content, d.image)
	})
}

// EditDraft opens an edit form for the entry at path.
func (s *Service) EditDraft(path string) (*EntryDraft, error) {
	p, err := tree.ParsePath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.tree.Entry(p)
	if err != nil {
		return nil, err
	}
	return editDraft(p, e), nil
}

// EditEntry saves the draft's content and image choice to the entry at path.
func (s *Service) EditEntry(_ context.Context, path string, d *EntryDraft) error {
	p, err := tree.ParsePath(path)
	if err != nil {
		return err
	}
	return s.run(EventUpdated, p, func(t *tree.Tree) error {
		return t.UpdateEntry(p, d.Content, d.image)
	})
}

// DeletePrompt is the question asked before deleting the item at path.
func (s *Service) DeletePrompt(path string) (string, error) {
	p, err := tree.ParsePath(path)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.tree.Lookup(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Are you sure you want to delete this %s (and all contents if a folder)?", c.Kind()), nil
}

// DeleteItem removes the item at path once c confirms. It reports whether anything was
// deleted; a declined confirmation is not an error.
func (s *Service) DeleteItem(_ context.Context, path string, c Confirmer) (bool, error) {
	prompt, err := s.DeletePrompt(path)
	if err != nil {
		return false, err
	}
	if c == nil || !c.Confirm(prompt) {
		return false, nil
	}
	p, _ := tree.ParsePath(path)
	if err := s.run(EventDeleted, p, func(t *tree.Tree) error {
		return t.DeleteItem(p)
	}); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns rendered hit lines for term.
func (s *Service) Search(term string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits, err := tree.Search(s.tree, term)
	if err != nil {
		return nil, err
	}
	return tree.FormatHits(hits), nil
}

// FolderChoices lists the parent folders offered by the add-entry form; "" is the root.
func (s *Service) FolderChoices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{""}, s.tree.ListFolderPaths()...)
}

// ViewEntry returns the entry at path for display.
func (s *Service) ViewEntry(path string) (*EntryView, error) {
	p, err := tree.ParsePath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	e, err := s.tree.Entry(p)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ev := &EntryView{Path: p.String(), Content: e.Content, HasImage: e.HasImage()}
	img := e.Image
	s.mu.Unlock()

	if img == "" {
		return ev, nil
	}
	if _, info, err := decodeImage(img); err != nil {
		ev.ImageError = "Error loading image: " + err.Error()
	} else {
		ev.Image = &info
	}
	return ev, nil
}

// ImageData returns the decoded image of the entry at path.
func (s *Service) ImageData(path string) ([]byte, imaging.Info, error) {
	p, err := tree.ParsePath(path)
	if err != nil {
		return nil, imaging.Info{}, err
	}
	s.mu.Lock()
	e, err := s.tree.Entry(p)
	var img string
	if e != nil {
		img = e.Image
	}
	s.mu.Unlock()
	if err != nil {
		return nil, imaging.Info{}, err
	}
	if img == "" {
		return nil, imaging.Info{}, fmt.Errorf("%w: entry %q has no image", apperr.ErrNotFound, p.String())
	}
	return decodeImage(img)
}

func decodeImage(text string) ([]byte, imaging.Info, error) {
	data, err := (&tree.Entry{Image: text}).ImageBytes()
	if err != nil {
		return nil, imaging.Info{}, err
	}
	info, err := imaging.Inspect(data)
	if err != nil {
		return nil, imaging.Info{}, err
	}
	return data, info, nil
}

// SetImage replaces the image of the entry at path, keeping its content.
func (s *Service) SetImage(_ context.Context, path string, data []byte) error {
	p, err := tree.ParsePath(path)
	if err != nil {
		return err
	}
	if _, err := imaging.Inspect(data); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return s.run(EventUpdated, p, func(t *tree.Tree) error {
		e, err := t.Entry(p)
		if err != nil {
			return err
		}
		return t.UpdateEntry(p, e.Content, tree.EncodeImage(data))
	})
}

// Outline returns copies of the visible rows and the global toggle state.
func (s *Service) Outline() ([]OutlineRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	visible := s.outline.Visible()
	rows := make([]OutlineRow, len(visible))
	for i, r := range visible {
		rows[i] = OutlineRow{
			Path:     r.Path.String(),
			Label:    r.Label,
			Folder:   r.IsFolder(),
			Content:  r.Content,
			HasImage: r.HasImage,
			Expanded: r.Expanded,
			Depth:    r.Depth,
		}
	}
	return rows, s.outline.AllExpanded()
}

// ToggleAll flips every folder open or closed and returns the new state.
func (s *Service) ToggleAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outline.Toggle()
}

// SetExpanded opens or closes the folder row at path.
func (s *Service) SetExpanded(path string, expanded bool) error {
	p, err := tree.ParsePath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outline.SetExpanded(p, expanded)
}

// ToggleRow flips the folder row at path.
func (s *Service) ToggleRow(path string) error {
	p, err := tree.ParsePath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outline.ToggleRow(p)
}

// Snapshot returns a deep copy of the tree for read-only callers.
func (s *Service) Snapshot() *tree.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Clone()
}
