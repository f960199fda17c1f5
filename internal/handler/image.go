package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imgvault/imgvault/internal/auth"
	"github.com/imgvault/imgvault/internal/handler/dto"
	"github.com/imgvault/imgvault/internal/imgur"
	"github.com/imgvault/imgvault/internal/repository"
	"github.com/imgvault/imgvault/internal/service"
)

// multipartMemoryLimit is how much of a multipart body is held in memory
// before spilling to disk.
const multipartMemoryLimit = 4 << 20 // 4 MB

// ImageHandler handles HTTP requests for image operations.
type ImageHandler struct {
	svc           *service.ImageService
	logger        *slog.Logger
	maxUploadSize int64
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(svc *service.ImageService, maxUploadSize int64, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		svc:           svc,
		logger:        logger,
		maxUploadSize: maxUploadSize,
	}
}

// Upload handles POST /api/v1/images.
// Expects a multipart form with the file in the "image" field.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "Request body must be multipart form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "MISSING_IMAGE", "Form field 'image' is required")
		return
	}
	defer file.Close()

	// Read one byte past the ceiling so the service can reject oversized
	// uploads without the handler buffering arbitrarily large bodies.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "UNREADABLE_IMAGE", "Could not read uploaded file")
		return
	}

	input := service.UploadInput{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}

	image, err := h.svc.Upload(r.Context(), identity.Username, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("image_uploaded",
		"username", identity.Username,
		"image_hash", image.ImageHash,
	)

	writeJSON(w, http.StatusCreated, dto.ToImageResponse(image, nil))
}

// Get handles GET /api/v1/images/{imageHash}.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	imageHash := chi.URLParam(r, "imageHash")
	if imageHash == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_IMAGE_HASH", "Image hash is required")
		return
	}

	image, info, err := h.svc.Fetch(r.Context(), identity.Username, imageHash)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToImageResponse(image, info))
}

// List handles GET /api/v1/images.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	images, err := h.svc.List(r.Context(), identity.Username)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToImageListResponse(images))
}

// Delete handles DELETE /api/v1/images/{imageHash}.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	imageHash := chi.URLParam(r, "imageHash")
	if imageHash == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_IMAGE_HASH", "Image hash is required")
		return
	}

	if err := h.svc.Delete(r.Context(), identity.Username, imageHash); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("image_deleted",
		"username", identity.Username,
		"image_hash", imageHash,
	)

	writeJSON(w, http.StatusOK, dto.DeleteImageResponse{Success: true})
}

// handleServiceError maps service errors to HTTP responses.
func (h *ImageHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *imgur.APIError

	switch {
	case errors.Is(err, service.ErrImageNotFound):
		h.writeError(w, http.StatusNotFound, "IMAGE_NOT_FOUND", "Image not found")
	case errors.Is(err, service.ErrEmptyImage):
		h.writeError(w, http.StatusBadRequest, "EMPTY_IMAGE", "Image data is empty")
	case errors.Is(err, service.ErrImageTooLarge):
		h.writeError(w, http.StatusBadRequest, "IMAGE_TOO_LARGE", "Image exceeds the maximum upload size")
	case errors.Is(err, service.ErrUnsupportedType):
		h.writeError(w, http.StatusBadRequest, "UNSUPPORTED_TYPE", "Image content type is not allowed")
	case errors.Is(err, service.ErrImageExists):
		h.writeError(w, http.StatusConflict, "IMAGE_EXISTS", "Image is already associated with this user")
	case errors.Is(err, repository.ErrUserNotFound):
		// Token verified but the account no longer exists.
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account not found")
	case errors.As(err, &apiErr):
		// Provider detail goes to the log; the response stays generic.
		h.logger.Error("provider_error",
			"op", apiErr.Op,
			"status", apiErr.StatusCode,
			"error", apiErr.Error(),
		)
		h.writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", "Image hosting provider request failed")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *ImageHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
