package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

// UploadParseHandler ingests a report synchronously, bypassing the queue.
type UploadParseHandler struct {
	ingestion services.IngestionService
	maxBytes  int64
	logger    *zap.Logger
}

// NewUploadParseHandler creates a synchronous ingestion handler.
// maxBytes <= 0 disables the body size limit.
func NewUploadParseHandler(ingestion services.IngestionService, maxBytes int64, logger *zap.Logger) *UploadParseHandler {
	return &UploadParseHandler{
		ingestion: ingestion,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *UploadParseHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/upload_parse", scope(authMiddleware.RequireUser(h.Parse)))
}

// Parse handles POST /api/upload_parse with a JSON (optionally gzipped) report body.
func (h *UploadParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	body := r.Body
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	result, err := services.IngestPayload(r.Context(), h.ingestion, user, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Upload exceeds the size limit")
		case errors.Is(err, apperrors.ErrDuplicateReport):
			h.writeError(w, http.StatusConflict, "duplicate_report", "Report already uploaded")
		case errors.Is(err, apperrors.ErrMalformedReport):
			h.writeError(w, http.StatusBadRequest, "malformed_report", err.Error())
		default:
			h.logger.Error("Synchronous ingestion failed",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "ingestion_failed", "Failed to ingest report")
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *UploadParseHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
