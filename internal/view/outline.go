// Package view projects a tree into the rows an outline widget shows and keeps each
// folder's expanded flag across full rebuilds.
package view

import (
	"fmt"

	"github.com/starford/datatree/internal/apperr"
	"github.com/starford/datatree/internal/tree"
)

// Row is one line of the outline. Folder rows carry their children; entry rows carry
// the entry's content.
type Row struct {
	Path     tree.Path
	Name     string
	Label    string
	Kind     tree.Kind
	Content  string
	HasImage bool
	Expanded bool
	Depth    int
	Children []*Row
}

// IsFolder reports whether the row shows a folder.
func (r *Row) IsFolder() bool { return r.Kind == tree.KindFolder }

// Outline is the display projection of one tree.
//
// Rows are recreated from scratch on every Rebuild. Expanded flags survive because they are
// snapshotted by path before the old rows are dropped.
type Outline struct {
	rows        []*Row
	byPath      map[string]*Row
	allExpanded bool
}

// New returns an empty outline whose folders start expanded.
func New() *Outline {
	return &Outline{byPath: make(map[string]*Row), allExpanded: true}
}

// AllExpanded is the default applied to folders with no saved state.
func (o *Outline) AllExpanded() bool { return o.allExpanded }

// Rows returns the top-level rows.
func (o *Outline) Rows() []*Row { return o.rows }

// Find returns the row at p, or nil.
func (o *Outline) Find(p tree.Path) *Row {
	return o.byPath[p.String()]
}

// Snapshot returns the expanded flag of every folder row keyed by path.
func (o *Outline) Snapshot() map[string]bool {
	state := make(map[string]bool)
	for key, r := range o.byPath {
		if r.IsFolder() {
			state[key] = r.Expanded
		}
	}
	return state
}

// Restore re-applies saved flags to rows whose path is present in state.
func (o *Outline) Restore(state map[string]bool) {
	for key, expanded := range state {
		if r, ok := o.byPath[key]; ok && r.IsFolder() {
			r.Expanded = expanded
		}
	}
}

// Rebuild replaces every row with a fresh projection of t.
func (o *Outline) Rebuild(t *tree.Tree) {
	state := o.Snapshot()

	o.rows = nil
	o.byPath = make(map[string]*Row)
	o.rows = o.build(t.Root(), tree.Path{}, 0)

	o.Restore(state)
}

func (o *Outline) build(f *tree.Folder, prefix tree.Path, depth int) []*Row {
	names := f.Names()
	rows := make([]*Row, 0, len(names))
	for _, name := range names {
		c, _ := f.Child(name)
		r := &Row{
			Path:  prefix.Join(name),
			Name:  name,
			Kind:  c.Kind(),
			Depth: depth,
		}
		switch v := c.(type) {
		case *tree.Folder:
			r.Label = tree.FolderLabel(name)
			r.Expanded = o.allExpanded
			r.Children = o.build(v, r.Path, depth+1)
		case *tree.Entry:
			r.Label = name
			r.Content = v.Content
			r.HasImage = v.HasImage()
		}
		o.byPath[r.Path.String()] = r
		rows = append(rows, r)
	}
	return rows
}

// Toggle flips the global flag and forces every folder row to the new value.
func (o *Outline) Toggle() bool {
	o.allExpanded = !o.allExpanded
	setExpandedRecursive(o.rows, o.allExpanded)
	return o.allExpanded
}

func setExpandedRecursive(rows []*Row, expanded bool) {
	for _, r := range rows {
		if r.IsFolder() {
			r.Expanded = expanded
			setExpandedRecursive(r.Children, expanded)
		}
	}
}

// SetExpanded sets the flag of the folder row at p.
func (o *Outline) SetExpanded(p tree.Path, expanded bool) error {
	r, err := o.folderRow(p)
	if err != nil {
		return err
	}
	r.Expanded = expanded
	return nil
}

// ToggleRow flips the flag of the folder row at p.
func (o *Outline) ToggleRow(p tree.Path) error {
	r, err := o.folderRow(p)
	if err != nil {
		return err
	}
	r.Expanded = !r.Expanded
	return nil
}

func (o *Outline) folderRow(p tree.Path) (*Row, error) {
	r := o.Find(p)
	if r == nil {
		return nil, fmt.Errorf("%w: no row %q", apperr.ErrNotFound, p.String())
	}
	if !r.IsFolder() {
		return nil, fmt.Errorf("%w: row %q is an entry", apperr.ErrNotAFolder, p.String())
	}
	return r, nil
}

// Visible flattens the outline into the rows currently on screen: top-level rows plus the
// children of expanded folders.
func (o *Outline) Visible() []*Row {
	return appendVisible(nil, o.rows)
}

func appendVisible(out []*Row, rows []*Row) []*Row {
	for _, r := range rows {
		out = append(out, r)
		if r.IsFolder() && r.Expanded {
			out = appendVisible(out, r.Children)
		}
	}
	return out
}
