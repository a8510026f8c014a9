package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// UploadRepository defines the interface for upload queue data access.
type UploadRepository interface {
	Create(ctx context.Context, upload *models.UploadRecord) error
	GetByID(ctx context.Context, uploadID int64) (*models.UploadRecord, error)
	// ListByStatus returns records in storage order; no submission ordering is implied.
	ListByStatus(ctx context.Context, status models.UploadStatus) ([]*models.UploadRecord, error)
	// ListByUser returns a user's uploads, newest first. userID 0 lists every upload.
	ListByUser(ctx context.Context, userID int64) ([]*models.UploadRecord, error)
	CountByStatus(ctx context.Context, statuses ...models.UploadStatus) (int, error)
	// Claim atomically moves a QUEUED record to PROCESSING. It returns false when the
	// record is no longer QUEUED, i.e. another worker already claimed it.
	Claim(ctx context.Context, uploadID int64) (bool, error)
	// Finish records a terminal (or any) status transition with its message.
	Finish(ctx context.Context, uploadID int64, status models.UploadStatus, message string) error
}

// uploadRepository implements UploadRepository using PostgreSQL.
type uploadRepository struct{}

// NewUploadRepository creates a new upload repository.
func NewUploadRepository() UploadRepository {
	return &uploadRepository{}
}

const uploadColumns = `upload_id, status, path, message, COALESCE(user_id, 0), created_at, modified_at`

// Create inserts a new upload record and fills in its id and timestamps.
func (r *uploadRepository) Create(ctx context.Context, upload *models.UploadRecord) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now().UTC()
	upload.CreatedAt = now
	upload.ModifiedAt = now
	if upload.Status == "" {
		upload.Status = models.UploadStatusQueued
	}

	query := `
		INSERT INTO uploads (status, path, message, user_id, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING upload_id`

	err := scope.Conn.QueryRow(ctx, query,
		upload.Status,
		upload.Path,
		upload.Message,
		upload.UserID,
		upload.CreatedAt,
		upload.ModifiedAt,
	).Scan(&upload.ID)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	return nil
}

// GetByID retrieves one upload record.
func (r *uploadRepository) GetByID(ctx context.Context, uploadID int64) (*models.UploadRecord, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE upload_id = $1`

	upload, err := scanUpload(scope.Conn.QueryRow(ctx, query, uploadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

// ListByStatus retrieves every upload in the given status.
func (r *uploadRepository) ListByStatus(ctx context.Context, status models.UploadStatus) ([]*models.UploadRecord, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE status = $1`

	rows, err := scope.Conn.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return collectUploads(rows)
}

// ListByUser retrieves uploads for a user, or all uploads when userID is 0.
func (r *uploadRepository) ListByUser(ctx context.Context, userID int64) ([]*models.UploadRecord, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT ` + uploadColumns + `
		FROM uploads
		WHERE $1::bigint = 0 OR user_id = $1::bigint
		ORDER BY created_at DESC, upload_id DESC`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return collectUploads(rows)
}

// CountByStatus counts uploads in any of the given statuses.
func (r *uploadRepository) CountByStatus(ctx context.Context, statuses ...models.UploadStatus) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var count int
	err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM uploads WHERE status = ANY($1)`, values).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return count, nil
}

// Claim flips QUEUED to PROCESSING only if the record is still QUEUED.
func (r *uploadRepository) Claim(ctx context.Context, uploadID int64) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE uploads
		SET status = $1, modified_at = $2
		WHERE upload_id = $3 AND status = $4`

	result, err := scope.Conn.Exec(ctx, query,
		models.UploadStatusProcessing, time.Now().UTC(), uploadID, models.UploadStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to claim upload %d: %w", uploadID, err)
	}

	return result.RowsAffected() == 1, nil
}

// Finish sets status and message on an upload record.
func (r *uploadRepository) Finish(ctx context.Context, uploadID int64, status models.UploadStatus, message string) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE uploads
		SET status = $1, message = $2, modified_at = $3
		WHERE upload_id = $4`

	result, err := scope.Conn.Exec(ctx, query, status, message, time.Now().UTC(), uploadID)
	if err != nil {
		return fmt.Errorf("failed to update upload %d: %w", uploadID, err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanUpload(row pgx.Row) (*models.UploadRecord, error) {
	var upload models.UploadRecord
	err := row.Scan(
		&upload.ID,
		&upload.Status,
		&upload.Path,
		&upload.Message,
		&upload.UserID,
		&upload.CreatedAt,
		&upload.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func collectUploads(rows pgx.Rows) ([]*models.UploadRecord, error) {
	defer rows.Close()

	var uploads []*models.UploadRecord
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}

	return uploads, nil
}

// Ensure uploadRepository implements UploadRepository at compile time.
var _ UploadRepository = (*uploadRepository)(nil)
