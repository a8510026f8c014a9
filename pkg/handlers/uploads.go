package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

// UploadFormField is the multipart field carrying the report file.
const UploadFormField = "report"

// UploadResponse is returned when a report is queued.
type UploadResponse struct {
	ID      int64               `json:"id"`
	Status  models.UploadStatus `json:"status"`
	Message string              `json:"message"`
}

// UploadListResponse for GET /api/uploads
type UploadListResponse struct {
	Uploads []*models.UploadRecord `json:"uploads"`
	Total   int                    `json:"total"`
}

// QueuedCountResponse for GET /api/uploads/queued/count
type QueuedCountResponse struct {
	Count int `json:"count"`
}

// UploadsHandler handles report upload intake and upload status queries.
type UploadsHandler struct {
	uploadService services.UploadService
	logger        *zap.Logger
}

// NewUploadsHandler creates a new uploads handler.
func NewUploadsHandler(uploadService services.UploadService, logger *zap.Logger) *UploadsHandler {
	return &UploadsHandler{
		uploadService: uploadService,
		logger:        logger,
	}
}

// RegisterRoutes registers the uploads handler's routes on the given mux.
func (h *UploadsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/uploads", scope(authMiddleware.RequireUser(h.Create)))
	mux.HandleFunc("GET /api/uploads", scope(authMiddleware.RequireUser(h.List)))
	mux.HandleFunc("GET /api/uploads/queued/count", scope(authMiddleware.RequireUser(h.QueuedCount)))
	mux.HandleFunc("GET /api/uploads/{id}", scope(authMiddleware.RequireUser(h.Get)))
}

// Create handles POST /api/uploads.
// The report is read from the "report" multipart field or, for any other content type,
// from the raw request body.
func (h *UploadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	payload, err := uploadPayload(r)
	if err != nil {
		h.logger.Debug("Rejected upload request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}

	record, err := h.uploadService.Queue(r.Context(), user, payload)
	if err != nil {
		if errors.Is(err, apperrors.ErrPayloadTooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Upload exceeds the size limit")
			return
		}
		h.logger.Error("Failed to queue upload",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "upload_failed", "Failed to store upload")
		return
	}

	response := UploadResponse{
		ID:      record.ID,
		Status:  record.Status,
		Message: record.Message,
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/uploads
func (h *UploadsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	uploads, err := h.uploadService.List(r.Context(), user)
	if err != nil {
		h.logger.Error("Failed to list uploads", zap.Int64("user_id", user.ID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_uploads_failed", "Failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []*models.UploadRecord{}
	}

	if err := WriteJSON(w, http.StatusOK, UploadListResponse{Uploads: uploads, Total: len(uploads)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/uploads/{id}
func (h *UploadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	uploadID, ok := ParseUploadID(w, r, h.logger)
	if !ok {
		return
	}

	upload, err := h.uploadService.Get(r.Context(), user, uploadID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Upload not found")
			return
		}
		h.logger.Error("Failed to get upload", zap.Int64("upload_id", uploadID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get_upload_failed", "Failed to get upload")
		return
	}

	if err := WriteJSON(w, http.StatusOK, upload); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// QueuedCount handles GET /api/uploads/queued/count
func (h *UploadsHandler) QueuedCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.uploadService.CountPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to count queued uploads", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "count_failed", "Failed to count queued uploads")
		return
	}

	if err := WriteJSON(w, http.StatusOK, QueuedCountResponse{Count: count}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *UploadsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// uploadPayload returns the report stream of an upload request without buffering it.
func uploadPayload(r *http.Request) (io.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("malformed multipart body")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New(`missing "` + UploadFormField + `" file field`)
		}
		if err != nil {
			return nil, errors.New("malformed multipart body")
		}
		if part.FormName() == UploadFormField {
			return part, nil
		}
		_ = part.Close()
	}
}
