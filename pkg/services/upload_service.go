package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/metrics"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
)

// UploadService handles report file intake and upload record queries.
type UploadService interface {
	// Queue stores the payload in the upload directory and records it as QUEUED.
	// The file is durable before the record exists.
	Queue(ctx context.Context, owner *models.User, payload io.Reader) (*models.UploadRecord, error)
	// List returns the caller's uploads, or every upload for admins.
	List(ctx context.Context, caller *models.User) ([]*models.UploadRecord, error)
	// Get returns one upload visible to caller, else apperrors.ErrNotFound.
	Get(ctx context.Context, caller *models.User, uploadID int64) (*models.UploadRecord, error)
	// CountPending returns the number of uploads not yet in a terminal state.
	CountPending(ctx context.Context) (int, error)
}

type uploadService struct {
	uploadRepo repositories.UploadRepository
	uploadDir  string
	maxBytes   int64
	metrics    *metrics.IngestionMetrics
	logger     *zap.Logger
}

// NewUploadService creates an upload service writing into uploadDir.
// maxBytes <= 0 disables the size limit. m may be nil.
func NewUploadService(
	uploadRepo repositories.UploadRepository,
	uploadDir string,
	maxBytes int64,
	m *metrics.IngestionMetrics,
	logger *zap.Logger,
) UploadService {
	return &uploadService{
		uploadRepo: uploadRepo,
		uploadDir:  uploadDir,
		maxBytes:   maxBytes,
		metrics:    m,
		logger:     logger.Named("upload-service"),
	}
}

var _ UploadService = (*uploadService)(nil)

func (s *uploadService) Queue(ctx context.Context, owner *models.User, payload io.Reader) (*models.UploadRecord, error) {
	if owner == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	path, err := s.writeUploadFile(payload)
	if err != nil {
		return nil, err
	}

	record := &models.UploadRecord{
		Status:  models.UploadStatusQueued,
		Path:    path,
		Message: models.UploadMessageQueued,
		UserID:  owner.ID,
	}
	if err := s.uploadRepo.Create(ctx, record); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("Failed to remove upload file after insert failure",
				zap.String("path", path),
				zap.Error(rmErr))
		}
		return nil, fmt.Errorf("failed to queue upload: %w", err)
	}

	s.metrics.RecordQueued()
	s.logger.Info("Upload queued",
		zap.Int64("upload_id", record.ID),
		zap.Int64("user_id", owner.ID))

	return record, nil
}

// writeUploadFile copies payload to a fresh uuid-named file and fsyncs it.
func (s *uploadService) writeUploadFile(payload io.Reader) (_ string, err error) {
	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(s.uploadDir, uuid.NewString()+".json")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close upload file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	src := payload
	if s.maxBytes > 0 {
		src = io.LimitReader(payload, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return "", apperrors.ErrPayloadTooLarge
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync upload file: %w", err)
	}
	return path, nil
}

func (s *uploadService) List(ctx context.Context, caller *models.User) ([]*models.UploadRecord, error) {
	if caller == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	var userID int64
	if !caller.IsAdmin {
		userID = caller.ID
	}
	return s.uploadRepo.ListByUser(ctx, userID)
}

func (s *uploadService) Get(ctx context.Context, caller *models.User, uploadID int64) (*models.UploadRecord, error) {
	if caller == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	record, err := s.uploadRepo.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && record.UserID != caller.ID {
		return nil, apperrors.ErrNotFound
	}
	return record, nil
}

func (s *uploadService) CountPending(ctx context.Context) (int, error) {
	n, err := s.uploadRepo.CountByStatus(ctx, models.UploadStatusQueued, models.UploadStatusProcessing)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Failed to count pending uploads", zap.Error(err))
	}
	return n, err
}
