package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lookbook-ai/lookbook/internal/domain"
	"github.com/lookbook-ai/lookbook/internal/service"
	"github.com/lookbook-ai/lookbook/pkg/httputil"
	"github.com/lookbook-ai/lookbook/pkg/middleware"
)

// GenerationHandler handles HTTP requests for generation endpoints.
type GenerationHandler struct {
	service *service.GenerationService
	logger  *slog.Logger
}

// NewGenerationHandler creates a new generation HTTP handler.
func NewGenerationHandler(svc *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{service: svc, logger: logger}
}

// Create handles POST /api/v1/generations (multipart/form-data).
func (h *GenerationHandler) Create(w http.ResponseWriter, r *http.Request) {
	maxSize := int64(domain.MaxImageSize) + (1 << 20) // form field overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(domain.MaxImageSize); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to parse multipart form: " + err.Error()},
		})
		return
	}

	input := service.GenerateInput{
		Prompt: r.FormValue("prompt"),
		Style:  r.FormValue("style"),
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		input.Image = &service.ImageUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        file,
		}
	}

	userID := middleware.UserIDFromContext(r.Context())

	gen, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		// The client went away; there is nobody left to answer.
		if errors.Is(err, context.Canceled) {
			h.logger.InfoContext(r.Context(), "generation request cancelled by client",
				slog.String("user_id", userID),
			)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: gen})
}

// List handles GET /api/v1/generations?limit=1..20.
func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultHistoryLimit

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > service.MaxHistoryLimit {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "limit must be an integer between 1 and 20"},
			})
			return
		}
		limit = n
	}

	userID := middleware.UserIDFromContext(r.Context())

	generations, err := h.service.List(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if generations == nil {
		generations = []domain.Generation{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: generations})
}
