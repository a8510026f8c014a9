package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// SampleRepository defines the interface for sample data access.
type SampleRepository interface {
	// FindByName returns the oldest sample with this name in any report, or apperrors.ErrNotFound.
	FindByName(ctx context.Context, name string) (*models.Sample, error)
	Create(ctx context.Context, sample *models.Sample) error
}

// sampleRepository implements SampleRepository using PostgreSQL.
type sampleRepository struct{}

// NewSampleRepository creates a new sample repository.
func NewSampleRepository() SampleRepository {
	return &sampleRepository{}
}

// FindByName looks a sample up by name alone.
func (r *sampleRepository) FindByName(ctx context.Context, name string) (*models.Sample, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT sample_id, sample_name, COALESCE(report_id, 0)
		FROM sample
		WHERE sample_name = $1
		ORDER BY sample_id
		LIMIT 1`

	var sample models.Sample
	err := scope.Conn.QueryRow(ctx, query, name).Scan(&sample.ID, &sample.Name, &sample.ReportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find sample %q: %w", name, err)
	}
	return &sample, nil
}

// Create inserts a sample and sets its ID.
func (r *sampleRepository) Create(ctx context.Context, sample *models.Sample) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	err := scope.Conn.QueryRow(ctx,
		`INSERT INTO sample (sample_name, report_id) VALUES ($1, $2) RETURNING sample_id`,
		sample.Name, sample.ReportID,
	).Scan(&sample.ID)
	if err != nil {
		return fmt.Errorf("failed to create sample %q: %w", sample.Name, err)
	}
	return nil
}

// Ensure sampleRepository implements SampleRepository at compile time.
var _ SampleRepository = (*sampleRepository)(nil)
