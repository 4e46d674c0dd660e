package tree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/starford/datatree/internal/apperr"
)

// Tree is one annotation tree. It is not safe for concurrent use; callers serialize access.
//
// Every mutation validates the whole request before touching any node, so a failed call
// leaves the tree exactly as it was.
type Tree struct {
	root *Folder
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: NewFolder()}
}

// Root returns the top-level folder.
func (t *Tree) Root() *Folder { return t.root }

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{root: t.root.clone().(*Folder)}
}

// ResolveFolder walks p from the root; every segment must exist and be a folder.
func (t *Tree) ResolveFolder(p Path) (*Folder, error) {
	cur := t.root
	for i, name := range p {
		c, ok := cur.Child(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", apperr.ErrNotFound, p[:i+1].String())
		}
		f, ok := c.(*Folder)
		if !ok {
			return nil, fmt.Errorf("%w: %q is an entry", apperr.ErrNotAFolder, p[:i+1].String())
		}
		cur = f
	}
	return cur, nil
}

// Lookup returns the node at p. The empty path returns the root folder.
func (t *Tree) Lookup(p Path) (Child, error) {
	if p.IsRoot() {
		return t.root, nil
	}
	parent, err := t.ResolveFolder(p.Parent())
	if err != nil {
		return nil, err
	}
	c, ok := parent.Child(p.Base())
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrNotFound, p.String())
	}
	return c, nil
}

// Entry returns the entry at p.
func (t *Tree) Entry(p Path) (*Entry, error) {
	c, err := t.Lookup(p)
	if err != nil {
		return nil, err
	}
	e, ok := c.(*Entry)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a folder", apperr.ErrConflict, p.String())
	}
	return e, nil
}

// checkFolderPath reports a conflict if any existing segment of p is an entry.
// Missing segments are fine; they are created by ensureFolder.
func (t *Tree) checkFolderPath(p Path) error {
	cur := t.root
	for i, name := range p {
		c, ok := cur.Child(name)
		if !ok {
			return nil
		}
		f, ok := c.(*Folder)
		if !ok {
			return fmt.Errorf("%w: '%s' is an entry, cannot add folder inside it", apperr.ErrConflict, p[:i+1].String())
		}
		cur = f
	}
	return nil
}

// ensureFolder creates every missing segment of p. Callers run checkFolderPath first.
func (t *Tree) ensureFolder(p Path) *Folder {
	cur := t.root
	for _, name := range p {
		c, ok := cur.Child(name)
		if !ok {
			f := NewFolder()
			cur.set(name, f)
			cur = f
			continue
		}
		cur = c.(*Folder)
	}
	return cur
}

func validSegments(p Path) error {
	for _, name := range p {
		if _, err := cleanName(name); err != nil {
			return err
		}
	}
	return nil
}

// InsertFolder creates p and any missing ancestors.
func (t *Tree) InsertFolder(p Path) error {
	if p.IsRoot() {
		return fmt.Errorf("%w: folder path cannot be empty", apperr.ErrValidation)
	}
	if err := validSegments(p); err != nil {
		return err
	}
	if err := t.checkFolderPath(p); err != nil {
		return err
	}
	t.ensureFolder(p)
	return nil
}

// InsertEntry stores an entry named name under parent, creating missing parent folders.
// An existing entry with the same name is replaced; an existing folder is a conflict.
func (t *Tree) InsertEntry(parent Path, name, content, image string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	content, err = cleanContent(content)
	if err != nil {
		return err
	}
	if err := validSegments(parent); err != nil {
		return err
	}
	if err := t.checkFolderPath(parent); err != nil {
		return err
	}
	if f, ferr := t.ResolveFolder(parent); ferr == nil {
		if c, ok := f.Child(name); ok && c.Kind() == KindFolder {
			return fmt.Errorf("%w: '%s' is a folder, cannot overwrite with entry", apperr.ErrConflict, parent.Join(name).String())
		}
	}
	t.ensureFolder(parent).set(name, &Entry{Content: content, Image: image})
	return nil
}

// UpdateEntry replaces the content of the entry at p. An empty image removes any stored image.
func (t *Tree) UpdateEntry(p Path, content, image string) error {
	content, err := cleanContent(content)
	if err != nil {
		return err
	}
	e, err := t.Entry(p)
	if err != nil {
		return err
	}
	e.Content = content
	e.Image = image
	return nil
}

// DeleteItem removes the folder or entry at p. Folders go with all their descendants.
func (t *Tree) DeleteItem(p Path) error {
	if p.IsRoot() {
		return fmt.Errorf("%w: cannot delete the tree root", apperr.ErrValidation)
	}
	parent, err := t.ResolveFolder(p.Parent())
	if err != nil {
		return err
	}
	if _, ok := parent.Child(p.Base()); !ok {
		return fmt.Errorf("%w: %q", apperr.ErrNotFound, p.String())
	}
	parent.remove(p.Base())
	return nil
}

// WalkFunc is called for every node below the root. Returning SkipChildren from a folder
// visit prunes that subtree.
type WalkFunc func(p Path, c Child) error

// SkipChildren is returned by a WalkFunc to prune a folder.
var SkipChildren = errors.New("skip children")

// Walk visits every node depth-first, children in lexicographic order.
func (t *Tree) Walk(fn WalkFunc) error {
	return walk(t.root, Path{}, fn)
}

func walk(f *Folder, prefix Path, fn WalkFunc) error {
	for _, name := range f.Names() {
		c, _ := f.Child(name)
		p := prefix.Join(name)
		err := fn(p, c)
		if errors.Is(err, SkipChildren) {
			continue
		}
		if err != nil {
			return err
		}
		if sub, ok := c.(*Folder); ok {
			if err := walk(sub, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListFolderPaths returns every folder path in the tree, sorted.
func (t *Tree) ListFolderPaths() []string {
	var paths []string
	_ = t.Walk(func(p Path, c Child) error {
		if c.Kind() == KindFolder {
			paths = append(paths, p.String())
		}
		return nil
	})
	sort.Strings(paths)
	return paths
}

// Count returns the number of folders and entries in the tree.
func (t *Tree) Count() (folders, entries int) {
	_ = t.Walk(func(_ Path, c Child) error {
		if c.Kind() == KindFolder {
			folders++
		} else {
			entries++
		}
		return nil
	})
	return folders, entries
}
