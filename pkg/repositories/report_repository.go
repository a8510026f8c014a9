package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ReportRepository defines the interface for report data access.
type ReportRepository interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	// Create inserts the report and sets its ID. A hash collision returns apperrors.ErrDuplicateReport.
	Create(ctx context.Context, report *models.Report) error
	AddMeta(ctx context.Context, meta []models.ReportMeta) error
	GetByID(ctx context.Context, reportID int64) (*models.Report, error)
	GetMeta(ctx context.Context, reportID int64) ([]models.ReportMeta, error)
}

// reportRepository implements ReportRepository using PostgreSQL.
type reportRepository struct{}

// NewReportRepository creates a new report repository.
func NewReportRepository() ReportRepository {
	return &reportRepository{}
}

// ExistsByHash reports whether a report with this content hash is stored.
func (r *reportRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	var exists bool
	err := scope.Conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM report WHERE report_hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check report hash: %w", err)
	}
	return exists, nil
}

// Create inserts a report row.
func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO report (report_hash, user_id, created_at, uploaded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING report_id`

	err := scope.Conn.QueryRow(ctx, query,
		report.Hash,
		report.UserID,
		report.CreatedAt,
		report.UploadedAt,
	).Scan(&report.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrDuplicateReport
		}
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// AddMeta bulk-inserts report metadata rows.
func (r *reportRepository) AddMeta(ctx context.Context, meta []models.ReportMeta) error {
	if len(meta) == 0 {
		return nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	_, err := scope.Conn.CopyFrom(ctx,
		pgx.Identifier{"report_meta"},
		[]string{"report_meta_key", "report_meta_value", "report_id"},
		pgx.CopyFromSlice(len(meta), func(i int) ([]any, error) {
			return []any{meta[i].Key, meta[i].Value, meta[i].ReportID}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to add report meta: %w", err)
	}
	return nil
}

// GetByID retrieves one report.
func (r *reportRepository) GetByID(ctx context.Context, reportID int64) (*models.Report, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT report_id, report_hash, user_id, created_at, uploaded_at
		FROM report
		WHERE report_id = $1`

	var report models.Report
	err := scope.Conn.QueryRow(ctx, query, reportID).Scan(
		&report.ID,
		&report.Hash,
		&report.UserID,
		&report.CreatedAt,
		&report.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// GetMeta retrieves all metadata for a report.
func (r *reportRepository) GetMeta(ctx context.Context, reportID int64) ([]models.ReportMeta, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT report_meta_id, report_id, report_meta_key, report_meta_value
		FROM report_meta
		WHERE report_id = $1
		ORDER BY report_meta_id`

	rows, err := scope.Conn.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to get report meta: %w", err)
	}
	defer rows.Close()

	var meta []models.ReportMeta
	for rows.Next() {
		var m models.ReportMeta
		if err := rows.Scan(&m.ID, &m.ReportID, &m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan report meta: %w", err)
		}
		meta = append(meta, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report meta: %w", err)
	}

	return meta, nil
}

// Ensure reportRepository implements ReportRepository at compile time.
var _ ReportRepository = (*reportRepository)(nil)
