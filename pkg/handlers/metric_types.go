package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

// MetricTypeListResponse for GET /api/metric_types
type MetricTypeListResponse struct {
	MetricTypes []repositories.MetricTypeListing `json:"metric_types"`
	Total       int                              `json:"total"`
}

// MetricTypesHandler lists metric types.
type MetricTypesHandler struct {
	metricTypeService services.MetricTypeService
	logger            *zap.Logger
}

// NewMetricTypesHandler creates a new metric types handler.
func NewMetricTypesHandler(metricTypeService services.MetricTypeService, logger *zap.Logger) *MetricTypesHandler {
	return &MetricTypesHandler{
		metricTypeService: metricTypeService,
		logger:            logger,
	}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *MetricTypesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/metric_types", scope(authMiddleware.RequireUser(h.List)))
}

// List handles GET /api/metric_types
func (h *MetricTypesHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.metricTypeService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list metric types", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_metric_types_failed", "Failed to list metric types"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, MetricTypeListResponse{MetricTypes: types, Total: len(types)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
