// Package tree implements the in-memory annotation tree: folders and entries addressed by
// slash-free name segments, with the mutation, search and JSON codec operations built on it.
package tree

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/starford/datatree/internal/apperr"
)

// Kind discriminates the two cases of Child.
type Kind int

const (
	KindFolder Kind = iota
	KindEntry
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// Child is a node stored under a name in a Folder. It is either a *Folder or an *Entry.
type Child interface {
	Kind() Kind
	clone() Child
}

// Folder is a container of named children.
type Folder struct {
	children map[string]Child
}

// NewFolder returns an empty folder.
func NewFolder() *Folder {
	return &Folder{children: make(map[string]Child)}
}

func (f *Folder) Kind() Kind { return KindFolder }

func (f *Folder) clone() Child {
	out := NewFolder()
	for name, c := range f.children {
		out.children[name] = c.clone()
	}
	return out
}

// Len returns the number of direct children.
func (f *Folder) Len() int { return len(f.children) }

// Child returns the direct child with the given name.
func (f *Folder) Child(name string) (Child, bool) {
	c, ok := f.children[name]
	return c, ok
}

// Names returns the direct child names in lexicographic order.
func (f *Folder) Names() []string {
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Folder) set(name string, c Child) {
	f.children[name] = c
}

func (f *Folder) remove(name string) {
	delete(f.children, name)
}

// Entry is a leaf carrying a text note and an optional embedded image.
// Image holds the base64 text exactly as persisted; empty means no image.
type Entry struct {
	Content string
	Image   string
}

func (e *Entry) Kind() Kind { return KindEntry }

func (e *Entry) clone() Child {
	cp := *e
	return &cp
}

// HasImage reports whether the entry carries an image.
func (e *Entry) HasImage() bool { return e.Image != "" }

// ImageBytes decodes the stored image text.
func (e *Entry) ImageBytes() ([]byte, error) {
	if e.Image == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(e.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrImageDecode, err)
	}
	return data, nil
}

// EncodeImage converts raw image bytes into their stored text form.
func EncodeImage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
