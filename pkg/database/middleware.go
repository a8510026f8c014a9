package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// scopeRetryAfter is the Retry-After hint, in seconds, sent when the pool is exhausted or down.
const scopeRetryAfter = "5"

// WithScope acquires a pooled connection for each request and stores it in the request
// context. The connection is released when the handler returns. Requests that cannot get
// a connection are answered with 503 so clients retry the upload later.
func WithScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.Acquire(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("method", r.Method),
					zap.String("route", r.Pattern),
					zap.Error(err))
				w.Header().Set("Retry-After", scopeRetryAfter)
				writeUnavailable(w)
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}

func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{"database_unavailable", "Database is temporarily unavailable"})
}
