package api

import (
	"errors"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/datatree/internal/treeservice"
)

// TreeInfo describes one mounted tree instance.
type TreeInfo struct {
	Name       string `json:"name" example:"good" validate:"required"`
	Label      string `json:"label" example:"Good DataTree" validate:"required"`
	File       string `json:"file" example:"good_datatree.json" validate:"required"`
	LoadedFile string `json:"loaded_file,omitempty" example:"notes.json"`
}

// TreeListResponse lists the mounted instances and the window title.
type TreeListResponse struct {
	Title string     `json:"title" example:"Dual DataTree" validate:"required"`
	Trees []TreeInfo `json:"trees" validate:"required"`
}

// OutlineRow is a visible outline row (aliased from the domain layer).
type OutlineRow = treeservice.OutlineRow

// OutlineResponse is the visible outline of one tree.
type OutlineResponse struct {
	Rows        []OutlineRow `json:"rows" validate:"required"`
	AllExpanded bool         `json:"all_expanded"`
}

// SetExpandedRequest opens or closes one folder row. A missing flag flips the row.
type SetExpandedRequest struct {
	Expanded *bool `json:"expanded"`
}

// AddFolderRequest is the request body for adding a folder.
type AddFolderRequest struct {
	Parent string `json:"parent" example:"Projects"`
	Path   string `json:"path" example:"2024/Q1" validate:"required"`
}

// Validate validates the request.
func (r *AddFolderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required.Error("path is required")),
	)
}

// AddEntryRequest is the request body for adding an entry. Image is an optional
// data:image/...;base64 URI.
type AddEntryRequest struct {
	Parent  string `json:"parent" example:"Projects"`
	Name    string `json:"name" example:"kickoff" validate:"required"`
	Content string `json:"content" example:"first meeting" validate:"required"`
	Image   string `json:"image,omitempty"`
}

// Validate validates the request.
func (r *AddEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required.Error("name is required")),
		validation.Field(&r.Content, validation.Required.Error("content is required")),
	)
}

// EditEntryRequest is the request body for editing an entry. Image replaces the current
// image; RemoveImage drops it.
type EditEntryRequest struct {
	Content     string `json:"content" example:"updated note" validate:"required"`
	Image       string `json:"image,omitempty"`
	RemoveImage bool   `json:"remove_image,omitempty"`
}

// Validate validates the request.
func (r *EditEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required.Error("content is required")),
	)
}

// LoadRequest is the request body for loading another tree file.
type LoadRequest struct {
	File string `json:"file" example:"archive.json"`
}

var errOutsideDataDir = errors.New("must be a relative path inside the data directory")

// insideDataDir rejects absolute paths and paths climbing out of the data directory. Over
// HTTP only files under the data directory can be loaded.
func insideDataDir(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if filepath.IsAbs(s) || filepath.VolumeName(s) != "" || strings.HasPrefix(s, "/") {
		return errOutsideDataDir
	}
	clean := filepath.Clean(s)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errOutsideDataDir
	}
	return nil
}

// Validate validates the request. An empty file is allowed and loads nothing.
func (r *LoadRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.File, validation.By(insideDataDir)),
	)
}

// EntryView is an entry as shown by the viewer (aliased from the domain layer).
type EntryView = treeservice.EntryView

// SearchResponse wraps rendered search lines.
type SearchResponse struct {
	Results []string `json:"results" validate:"required"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Path   string `json:"path" example:"Projects/kickoff" validate:"required"`
	Format string `json:"format" example:"png" validate:"required"`
	Width  int    `json:"width" example:"640"`
	Height int    `json:"height" example:"480"`
	Size   int    `json:"size" example:"12345"`
}
