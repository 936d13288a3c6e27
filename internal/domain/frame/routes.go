package frame

import "github.com/go-chi/chi/v5"

// Routes returns the frame router, mounted under /api/videos/{id}/frames by
// the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}
