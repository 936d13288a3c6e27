package search

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mwork/videoindex-api/internal/pkg/response"
	"github.com/mwork/videoindex-api/internal/pkg/validator"
)

// Handler serves GET /api/search.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// searchQuery mirrors the request's query parameters so validator can apply
// the same struct-tag rules the rest of the API uses for JSON bodies.
type searchQuery struct {
	Q        string `json:"q" validate:"required,max=500"`
	Page     int    `json:"page" validate:"min=1"`
	PageSize int    `json:"page_size" validate:"min=1,max=100"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{
		Q:        r.URL.Query().Get("q"),
		Page:     parseIntDefault(r.URL.Query().Get("page"), 1),
		PageSize: parseIntDefault(r.URL.Query().Get("page_size"), 20),
	}
	if errs := validator.Validate(&q); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	expiresIn := time.Duration(parseIntDefault(r.URL.Query().Get("expires_in"), 900)) * time.Second

	result, err := h.service.Search(r.Context(), q.Q, q.Page, q.PageSize, expiresIn)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, result)
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
