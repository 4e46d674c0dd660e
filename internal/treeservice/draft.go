package treeservice

import (
	"path/filepath"

	"github.com/starford/datatree/internal/imaging"
	"github.com/starford/datatree/internal/tree"
)

// Image status lines shown next to the image picker.
const (
	StatusNoImageSelected = "No image selected"
	StatusImageAttached   = "Image attached"
	StatusNoImage         = "No image"
)

// EntryDraft is the state of one add or edit form. It owns the image chosen so far and is
// handed to AddEntry or EditEntry when the form is submitted.
type EntryDraft struct {
	Parent  string
	Name    string
	Content string

	editing  bool
	hadImage bool
	image    string
	status   string
}

// NewEntryDraft starts an add form under parent.
func NewEntryDraft(parent string) *EntryDraft {
	return &EntryDraft{Parent: parent, status: StatusNoImageSelected}
}

func editDraft(p tree.Path, e *tree.Entry) *EntryDraft {
	d := &EntryDraft{
		Parent:   p.Parent().String(),
		Name:     p.Base(),
		Content:  e.Content,
		editing:  true,
		hadImage: e.HasImage(),
		image:    e.Image,
		status:   StatusNoImage,
	}
	if d.hadImage {
		d.status = StatusImageAttached
	}
	return d
}

// Editing reports whether the draft edits an existing entry.
func (d *EntryDraft) Editing() bool { return d.editing }

// CanRemoveImage reports whether the form offers a remove-image action.
func (d *EntryDraft) CanRemoveImage() bool { return d.editing && d.hadImage }

// HasImage reports whether submitting the draft stores an image.
func (d *EntryDraft) HasImage() bool { return d.image != "" }

// ImageStatus is the line describing the current image choice.
func (d *EntryDraft) ImageStatus() string { return d.status }

// SelectImage records raw image bytes picked from filename.
func (d *EntryDraft) SelectImage(data []byte, filename string) {
	d.image = tree.EncodeImage(data)
	if d.editing {
		d.status = "New image selected: " + filepath.Base(filename)
	} else {
		d.status = "Image selected: " + filepath.Base(filename)
	}
}

// SelectImageFile reads the image at path. An empty path means the picker was cancelled
// and leaves the draft unchanged.
func (d *EntryDraft) SelectImageFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := imaging.ReadFile(path)
	if err != nil {
		return err
	}
	d.SelectImage(data, path)
	return nil
}

// RemoveImage drops the image so the entry is saved without one.
func (d *EntryDraft) RemoveImage() {
	d.image = ""
	d.status = StatusNoImage
}
