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

// MetricTypeListing is a metric type with its query-time display name.
type MetricTypeListing struct {
	models.MetricType
	NiceName string `json:"nice_name"`
}

// MetricRepository defines the interface for metric type and value data access.
type MetricRepository interface {
	// FindTypeByDataID returns the metric type for a raw field id, or apperrors.ErrNotFound.
	FindTypeByDataID(ctx context.Context, dataID string) (*models.MetricType, error)
	CreateType(ctx context.Context, metricType *models.MetricType) error
	// AddValues bulk-inserts metric values and returns the number of rows written.
	AddValues(ctx context.Context, values []models.MetricValue) (int64, error)
	ListTypes(ctx context.Context) ([]MetricTypeListing, error)
}

// metricRepository implements MetricRepository using PostgreSQL.
type metricRepository struct{}

// NewMetricRepository creates a new metric repository.
func NewMetricRepository() MetricRepository {
	return &metricRepository{}
}

// FindTypeByDataID looks up a metric type by its raw source identifier.
func (r *metricRepository) FindTypeByDataID(ctx context.Context, dataID string) (*models.MetricType, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT sample_data_type_id, data_id, data_section, data_key, schema
		FROM sample_data_type
		WHERE data_id = $1`

	var mt models.MetricType
	err := scope.Conn.QueryRow(ctx, query, dataID).Scan(&mt.ID, &mt.DataID, &mt.Section, &mt.Key, &mt.Schema)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find metric type %q: %w", dataID, err)
	}
	return &mt, nil
}

// CreateType inserts a metric type and sets its ID. When another transaction already
// committed the same data_id, the existing row's ID is used instead.
func (r *metricRepository) CreateType(ctx context.Context, metricType *models.MetricType) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO sample_data_type (data_id, data_section, data_key, schema)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (data_id) DO NOTHING
		RETURNING sample_data_type_id`

	err := scope.Conn.QueryRow(ctx, query,
		metricType.DataID,
		metricType.Section,
		metricType.Key,
		metricType.Schema,
	).Scan(&metricType.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = scope.Conn.QueryRow(ctx,
			`SELECT sample_data_type_id FROM sample_data_type WHERE data_id = $1`,
			metricType.DataID).Scan(&metricType.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create metric type %q: %w", metricType.DataID, err)
	}
	return nil
}

// AddValues writes metric values with COPY.
func (r *metricRepository) AddValues(ctx context.Context, values []models.MetricValue) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	n, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"sample_data"},
		[]string{"report_id", "sample_data_type_id", "sample_id", "value"},
		pgx.CopyFromSlice(len(values), func(i int) ([]any, error) {
			v := values[i]
			return []any{v.ReportID, v.MetricTypeID, v.SampleID, v.Value}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add metric values: %w", err)
	}
	return n, nil
}

// ListTypes returns every metric type ordered by display name.
func (r *metricRepository) ListTypes(ctx context.Context) ([]MetricTypeListing, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT sample_data_type_id, data_id, data_section, data_key, schema,
		       ` + models.MetricNiceNameSQL + ` AS nice_name
		FROM sample_data_type
		ORDER BY nice_name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric types: %w", err)
	}
	defer rows.Close()

	var types []MetricTypeListing
	for rows.Next() {
		var l MetricTypeListing
		if err := rows.Scan(&l.ID, &l.DataID, &l.Section, &l.Key, &l.Schema, &l.NiceName); err != nil {
			return nil, fmt.Errorf("failed to scan metric type: %w", err)
		}
		types = append(types, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric types: %w", err)
	}

	return types, nil
}

// Ensure metricRepository implements MetricRepository at compile time.
var _ MetricRepository = (*metricRepository)(nil)
