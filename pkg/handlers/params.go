package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ParseUploadID extracts and validates the upload ID from the request path.
// Returns the ID and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseUploadID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "id", "invalid_upload_id", "Invalid upload ID", logger)
}

// parseID parses a positive integer path parameter.
func parseID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParam), 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return id, true
}
