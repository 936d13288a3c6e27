package video

import "github.com/go-chi/chi/v5"

// Routes returns the video router: upload plus the read-only catalog
// endpoints. No auth middleware — multi-tenant authorization is a
// documented non-goal of this pipeline.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload", h.Upload)
	r.Get("/api/summary", h.Summary)
	r.Get("/api/videos", h.List)
	r.Get("/api/videos/{id}", h.Get)

	return r
}
