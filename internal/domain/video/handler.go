package video

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mwork/videoindex-api/internal/pkg/response"
)

const MaxUploadSize = 2 * 1024 * 1024 * 1024 // 2 GiB, mirrors storage.MaxFileSizes["video"]

// Handler serves the Ingress + video-catalog HTTP surface.
type Handler struct {
	service    *Service
	maxRetries int
}

func NewHandler(service *Service, maxRetries int) *Handler {
	return &Handler{service: service, maxRetries: maxRetries}
}

// Upload handles POST /upload (multipart video).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.BadRequest(w, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		response.BadRequest(w, "no video file provided")
		return
	}
	defer file.Close()

	v, err := h.service.Upload(r.Context(), header.Filename, file, h.maxRetries)
	if err != nil {
		switch {
		case errors.Is(err, ErrStorageFull):
			response.Error(w, http.StatusInsufficientStorage, "STORAGE_FULL", "object store is full")
		case errors.Is(err, ErrUpstreamUnavailable):
			response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "storage backend unavailable")
		default:
			response.InternalError(w)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
	response.JSON(w, http.StatusAccepted, UploadResponse{
		VideoID:  v.ID,
		Filename: v.OriginalName,
		Status:   v.Status,
	})
}

// Summary handles GET /api/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summary(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, s)
}

// List handles GET /api/videos.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	out := make([]ListItemResponse, len(items))
	for i, item := range items {
		out[i] = FromListItem(item)
	}
	response.OK(w, out)
}

// Get handles GET /api/videos/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrVideoNotFound) {
			response.NotFound(w, "video not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, FromEntity(v))
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
