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

// PlotRepository defines the interface for plot config, category and data access.
type PlotRepository interface {
	// FindConfig returns the config with this identity, or apperrors.ErrNotFound.
	FindConfig(ctx context.Context, plotType models.PlotType, name, dataset string) (*models.PlotConfig, error)
	CreateConfig(ctx context.Context, config *models.PlotConfig) error
	// FindCategory returns the category with this identity, or apperrors.ErrNotFound.
	FindCategory(ctx context.Context, configID int64, name string) (*models.PlotCategory, error)
	CreateCategory(ctx context.Context, category *models.PlotCategory) error
	UpdateCategoryData(ctx context.Context, categoryID int64, data string) error
	// AddData bulk-inserts plot data rows and returns the number written.
	AddData(ctx context.Context, data []models.PlotData) (int64, error)
}

// plotRepository implements PlotRepository using PostgreSQL.
type plotRepository struct{}

// NewPlotRepository creates a new plot repository.
func NewPlotRepository() PlotRepository {
	return &plotRepository{}
}

// FindConfig looks up a plot config by (type, name, dataset).
func (r *plotRepository) FindConfig(ctx context.Context, plotType models.PlotType, name, dataset string) (*models.PlotConfig, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT config_id, config_type, config_name, config_dataset, data
		FROM plot_config
		WHERE config_type = $1 AND config_name = $2 AND config_dataset = $3`

	var c models.PlotConfig
	err := scope.Conn.QueryRow(ctx, query, plotType, name, dataset).Scan(
		&c.ID, &c.Type, &c.Name, &c.Dataset, &c.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find plot config %s/%s: %w", name, dataset, err)
	}
	return &c, nil
}

// CreateConfig inserts a plot config and sets its ID. An existing config with the same
// (type, name, dataset) is reused unchanged.
func (r *plotRepository) CreateConfig(ctx context.Context, config *models.PlotConfig) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO plot_config (config_type, config_name, config_dataset, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT plot_config_identity_key DO NOTHING
		RETURNING config_id`

	err := scope.Conn.QueryRow(ctx, query, config.Type, config.Name, config.Dataset, config.Data).Scan(&config.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = scope.Conn.QueryRow(ctx, `
			SELECT config_id FROM plot_config
			WHERE config_type = $1 AND config_name = $2 AND config_dataset = $3`,
			config.Type, config.Name, config.Dataset).Scan(&config.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create plot config %s/%s: %w", config.Name, config.Dataset, err)
	}
	return nil
}

// FindCategory looks up a category by (config, name).
func (r *plotRepository) FindCategory(ctx context.Context, configID int64, name string) (*models.PlotCategory, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT plot_category_id, COALESCE(report_id, 0), config_id, category_name, data
		FROM plot_category
		WHERE config_id = $1 AND category_name = $2`

	var c models.PlotCategory
	err := scope.Conn.QueryRow(ctx, query, configID, name).Scan(
		&c.ID, &c.ReportID, &c.ConfigID, &c.Name, &c.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find plot category %q: %w", name, err)
	}
	return &c, nil
}

// CreateCategory inserts a plot category and sets its ID. If the (config, name) pair
// already exists its data is overwritten, matching last-write-wins on found categories.
func (r *plotRepository) CreateCategory(ctx context.Context, category *models.PlotCategory) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO plot_category (report_id, config_id, category_name, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT plot_category_identity_key
		DO UPDATE SET data = EXCLUDED.data
		RETURNING plot_category_id`

	err := scope.Conn.QueryRow(ctx, query,
		category.ReportID, category.ConfigID, category.Name, category.Data).Scan(&category.ID)
	if err != nil {
		return fmt.Errorf("failed to create plot category %q: %w", category.Name, err)
	}
	return nil
}

// UpdateCategoryData overwrites a category's metadata blob.
func (r *plotRepository) UpdateCategoryData(ctx context.Context, categoryID int64, data string) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`UPDATE plot_category SET data = $1 WHERE plot_category_id = $2`, data, categoryID)
	if err != nil {
		return fmt.Errorf("failed to update plot category %d: %w", categoryID, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AddData writes plot data rows with COPY.
func (r *plotRepository) AddData(ctx context.Context, data []models.PlotData) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	n, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"plot_data"},
		[]string{"report_id", "config_id", "plot_category_id", "sample_id", "data"},
		pgx.CopyFromSlice(len(data), func(i int) ([]any, error) {
			d := data[i]
			return []any{d.ReportID, d.ConfigID, d.CategoryID, d.SampleID, d.Data}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add plot data: %w", err)
	}
	return n, nil
}

// Ensure plotRepository implements PlotRepository at compile time.
var _ PlotRepository = (*plotRepository)(nil)
