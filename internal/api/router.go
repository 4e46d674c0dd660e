package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/datatree/internal/workbench"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(wb *workbench.Workbench, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(wb)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/trees", h.ListTrees)

	r.Route("/trees/{tree}", func(r chi.Router) {
		// Outline.
		r.Get("/outline", h.Outline)
		r.Post("/outline/toggle", h.ToggleAll)
		r.Put("/outline/rows/*", h.SetExpanded)

		// Folders and entries.
		r.Get("/folders", h.FolderChoices)
		r.Post("/folders", h.AddFolder)
		r.Post("/entries", h.AddEntry)
		r.Get("/entries/*", h.ViewEntry)
		r.Put("/entries/*", h.EditEntry)
		r.Delete("/items/*", h.DeleteItem)

		// Images.
		r.Get("/images/*", h.ServeImage)
		r.Put("/images/*", h.UploadImage)

		r.Get("/search", h.Search)
		r.Post("/load", h.Load)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
