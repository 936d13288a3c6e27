package search

import "github.com/go-chi/chi/v5"

// Routes returns the search router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Search)
	return r
}
