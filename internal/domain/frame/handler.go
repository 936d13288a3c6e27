package frame

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwork/videoindex-api/internal/pkg/response"
)

// Handler serves the per-video frame listing.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /api/videos/{id}/frames.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	expiresIn := time.Duration(parseIntDefault(r.URL.Query().Get("expires_in"), 900)) * time.Second

	frames, err := h.service.ListForVideo(r.Context(), videoID, limit, offset, expiresIn)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, frames)
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
