package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/datatree/internal/apperr"
	"github.com/starford/datatree/internal/imaging"
	"github.com/starford/datatree/internal/treeservice"
	"github.com/starford/datatree/internal/workbench"
)

const maxBodyBytes = 16 << 20 // 16 MB, room for a base64 image

// Handler holds API route handlers.
type Handler struct {
	wb *workbench.Workbench
}

// NewHandler creates a new Handler.
func NewHandler(wb *workbench.Workbench) *Handler {
	return &Handler{wb: wb}
}

// itemPath extracts the tree path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. Projects%2Fkickoff).
func itemPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// service resolves the {tree} URL parameter, writing 404 when it is unknown.
func (h *Handler) service(w http.ResponseWriter, r *http.Request) (*treeservice.Service, bool) {
	svc, err := h.wb.Get(chi.URLParam(r, "tree"))
	if err != nil {
		writeError(w, "resolve tree", err)
		return nil, false
	}
	return svc, true
}

// decode reads a JSON body into v and runs its Validate method.
func decode(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// ListTrees handles GET /api/trees.
//
//	@Summary		List mounted tree instances
//	@Tags			trees
//	@Produce		json
//	@Success		200	{object}	TreeListResponse
//	@Security		BearerAuth
//	@Router			/trees [get]
func (h *Handler) ListTrees(w http.ResponseWriter, _ *http.Request) {
	resp := TreeListResponse{Title: h.wb.Title(), Trees: []TreeInfo{}}
	for _, svc := range h.wb.Services() {
		resp.Trees = append(resp.Trees, TreeInfo{
			Name:       svc.Name(),
			Label:      svc.Label(),
			File:       svc.File(),
			LoadedFile: svc.LoadedFile(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Outline handles GET /api/trees/{tree}/outline.
//
//	@Summary		Visible outline rows of a tree
//	@Tags			outline
//	@Produce		json
//	@Param			tree	path		string	true	"Tree name"
//	@Success		200		{object}	OutlineResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/outline [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	rows, all := svc.Outline()
	if rows == nil {
		rows = []OutlineRow{}
	}
	writeJSON(w, http.StatusOK, OutlineResponse{Rows: rows, AllExpanded: all})
}

// ToggleAll handles POST /api/trees/{tree}/outline/toggle.
func (h *Handler) ToggleAll(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"all_expanded": svc.ToggleAll()})
}

// SetExpanded handles PUT /api/trees/{tree}/outline/rows/*.
func (h *Handler) SetExpanded(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req SetExpandedRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	path := itemPath(r)
	var err error
	if req.Expanded == nil {
		err = svc.ToggleRow(path)
	} else {
		err = svc.SetExpanded(path, *req.Expanded)
	}
	if err != nil {
		writeError(w, "set expanded", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FolderChoices handles GET /api/trees/{tree}/folders.
//
//	@Summary		Parent folder choices, root first
//	@Tags			folders
//	@Produce		json
//	@Param			tree	path	string	true	"Tree name"
//	@Success		200
//	@Security		BearerAuth
//	@Router			/trees/{tree}/folders [get]
func (h *Handler) FolderChoices(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"folders": svc.FolderChoices()})
}

// AddFolder handles POST /api/trees/{tree}/folders.
//
//	@Summary		Create a folder and any missing parents
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			tree	path		string				true	"Tree name"
//	@Param			body	body		AddFolderRequest	true	"Folder to create"
//	@Success		201
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/folders [post]
func (h *Handler) AddFolder(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req AddFolderRequest
	if !decode(w, r, &req) {
		return
	}
	if err := svc.AddFolder(r.Context(), req.Parent, req.Path); err != nil {
		writeError(w, "add folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"parent": req.Parent, "path": req.Path})
}

// AddEntry handles POST /api/trees/{tree}/entries.
//
//	@Summary		Create an entry, replacing one with the same name
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			tree	path		string			true	"Tree name"
//	@Param			body	body		AddEntryRequest	true	"Entry to create"
//	@Success		201		{object}	EntryView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/entries [post]
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req AddEntryRequest
	if !decode(w, r, &req) {
		return
	}
	d := treeservice.NewEntryDraft(req.Parent)
	d.Name = req.Name
	d.Content = req.Content
	if req.Image != "" {
		data, err := imaging.DecodeDataURI(req.Image)
		if err != nil {
			writeError(w, "add entry", err)
			return
		}
		d.SelectImage(data, "upload")
	}
	if err := svc.AddEntry(r.Context(), d); err != nil {
		writeError(w, "add entry", err)
		return
	}
	h.writeEntry(w, svc, joinPath(req.Parent, req.Name), http.StatusCreated)
}

func joinPath(parent, name string) string {
	parent = strings.Trim(strings.TrimSpace(parent), "/")
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (h *Handler) writeEntry(w http.ResponseWriter, svc *treeservice.Service, path string, status int) {
	ev, err := svc.ViewEntry(path)
	if err != nil {
		writeError(w, "view entry", err)
		return
	}
	writeJSON(w, status, ev)
}

// ViewEntry handles GET /api/trees/{tree}/entries/*.
//
//	@Summary		Entry content and image metadata
//	@Tags			entries
//	@Produce		json
//	@Param			tree	path		string	true	"Tree name"
//	@Param			path	path		string	true	"Entry path"
//	@Success		200		{object}	EntryView
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/entries/{path} [get]
func (h *Handler) ViewEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	path := itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	h.writeEntry(w, svc, path, http.StatusOK)
}

// EditEntry handles PUT /api/trees/{tree}/entries/*.
//
//	@Summary		Replace an entry's content and optionally its image
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			tree	path		string				true	"Tree name"
//	@Param			path	path		string				true	"Entry path"
//	@Param			body	body		EditEntryRequest	true	"New content"
//	@Success		200		{object}	EntryView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/entries/{path} [put]
func (h *Handler) EditEntry(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	path := itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req EditEntryRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := svc.EditDraft(path)
	if err != nil {
		writeError(w, "edit entry", err)
		return
	}
	d.Content = req.Content
	switch {
	case req.Image != "":
		data, err := imaging.DecodeDataURI(req.Image)
		if err != nil {
			writeError(w, "edit entry", err)
			return
		}
		d.SelectImage(data, "upload")
	case req.RemoveImage:
		d.RemoveImage()
	}
	if err := svc.EditEntry(r.Context(), path, d); err != nil {
		writeError(w, "edit entry", err)
		return
	}
	h.writeEntry(w, svc, path, http.StatusOK)
}

// DeleteItem handles DELETE /api/trees/{tree}/items/*?confirm=yes.
//
//	@Summary		Delete a folder with its contents, or an entry
//	@Tags			items
//	@Param			tree	path	string	true	"Tree name"
//	@Param			path	path	string	true	"Item path"
//	@Param			confirm	query	string	true	"Must be yes"
//	@Success		204		"Item deleted"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/items/{path} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	path := itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var prompt string
	confirm := treeservice.ConfirmFunc(func(p string) bool {
		prompt = p
		return strings.EqualFold(r.URL.Query().Get("confirm"), "yes")
	})
	deleted, err := svc.DeleteItem(r.Context(), path, confirm)
	if err != nil {
		writeError(w, "delete item", err)
		return
	}
	if !deleted {
		writeError(w, "delete item", fmt.Errorf("%w: %s Pass confirm=yes.", apperr.ErrValidation, prompt))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/trees/{tree}/search.
//
//	@Summary		Case-insensitive search over folder and entry names
//	@Tags			search
//	@Produce		json
//	@Param			tree	path		string	true	"Tree name"
//	@Param			q		query		string	true	"Search term"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trees/{tree}/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	lines, err := svc.Search(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: lines})
}

// Load handles POST /api/trees/{tree}/load.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req LoadRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.wb.Load(r.Context(), svc.Name(), req.File); err != nil {
		writeError(w, "load file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": h.wb.Title(), "file": svc.File()})
}
