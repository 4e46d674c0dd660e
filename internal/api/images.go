package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/datatree/internal/imaging"
)

const maxUploadBytes = 11 << 20 // image limit plus multipart overhead

// ServeImage handles GET /api/trees/{tree}/images/*.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	data, info, err := svc.ImageData(itemPath(r))
	if err != nil {
		writeError(w, "serve image", err)
		return
	}
	w.Header().Set("Content-Type", info.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// UploadImage handles PUT /api/trees/{tree}/images/* (multipart/form-data, field "file").
// The entry keeps its content; its image is replaced.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	path := itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if err := imaging.CheckUpload(header.Filename, data); err != nil {
		writeError(w, "upload image", err)
		return
	}
	if err := svc.SetImage(r.Context(), path, data); err != nil {
		writeError(w, "upload image", err)
		return
	}
	_, info, err := svc.ImageData(path)
	if err != nil {
		writeError(w, "upload image", err)
		return
	}
	writeJSON(w, http.StatusOK, ImageUploadResponse{
		Path:   path,
		Format: info.Format,
		Width:  info.Width,
		Height: info.Height,
		Size:   info.Size,
	})
}
