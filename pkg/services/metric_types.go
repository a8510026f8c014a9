package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
)

// MetricTypeService exposes the catalogue of metric types seen across reports.
type MetricTypeService interface {
	List(ctx context.Context) ([]repositories.MetricTypeListing, error)
}

type metricTypeService struct {
	metricRepo repositories.MetricRepository
	logger     *zap.Logger
}

// NewMetricTypeService creates a metric type service.
func NewMetricTypeService(metricRepo repositories.MetricRepository, logger *zap.Logger) MetricTypeService {
	return &metricTypeService{
		metricRepo: metricRepo,
		logger:     logger.Named("metric-types"),
	}
}

var _ MetricTypeService = (*metricTypeService)(nil)

func (s *metricTypeService) List(ctx context.Context) ([]repositories.MetricTypeListing, error) {
	types, err := s.metricRepo.ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric types: %w", err)
	}
	if types == nil {
		types = []repositories.MetricTypeListing{}
	}
	s.logger.Debug("Listed metric types", zap.Int("count", len(types)))
	return types, nil
}
