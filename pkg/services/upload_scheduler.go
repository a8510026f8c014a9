package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/logging"
	"github.com/Daylily-Informatics/UltraQC/pkg/metrics"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
	"github.com/Daylily-Informatics/UltraQC/pkg/retry"
)

// DefaultScanInterval is how often the scheduler looks for queued uploads.
const DefaultScanInterval = 30 * time.Second

// TickSummary counts what one scheduler pass did.
type TickSummary struct {
	Queued     int
	Claimed    int
	Treated    int
	Duplicates int
	Failed     int
	// Aborted is set when a state transition could not be recorded and the pass stopped early.
	Aborted bool
}

// UploadScheduler moves queued uploads through QUEUED -> PROCESSING -> TREATED | FAILED.
type UploadScheduler interface {
	// RunOnce processes every upload that is QUEUED when the pass starts.
	RunOnce(ctx context.Context) TickSummary

	// Run processes the queue immediately, then every interval, until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration)
}

type uploadScheduler struct {
	db         *database.DB
	uploadRepo repositories.UploadRepository
	userRepo   repositories.UserRepository
	ingestion  IngestionService
	uploadDir  string
	retryCfg   *retry.Config
	metrics    *metrics.IngestionMetrics
	logger     *zap.Logger
}

// NewUploadScheduler creates the upload scheduler. db supplies the connection scope for
// each pass; it may be nil when the repositories need none. m may be nil.
func NewUploadScheduler(
	db *database.DB,
	uploadRepo repositories.UploadRepository,
	userRepo repositories.UserRepository,
	ingestion IngestionService,
	uploadDir string,
	m *metrics.IngestionMetrics,
	logger *zap.Logger,
) UploadScheduler {
	return &uploadScheduler{
		db:         db,
		uploadRepo: uploadRepo,
		userRepo:   userRepo,
		ingestion:  ingestion,
		uploadDir:  uploadDir,
		retryCfg:   retry.DefaultConfig(),
		metrics:    m,
		logger:     logger.Named("upload-scheduler"),
	}
}

var _ UploadScheduler = (*uploadScheduler)(nil)

// errTransition marks a state change that could not be persisted.
var errTransition = errors.New("failed to record upload state transition")

func (s *uploadScheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	s.logger.Info("Upload scheduler started", zap.Duration("interval", interval))

	// Run immediately on startup, then at each interval
	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Upload scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *uploadScheduler) RunOnce(ctx context.Context) TickSummary {
	var summary TickSummary
	start := time.Now()

	if s.db != nil {
		ctx = s.db.WithPoolScope(ctx)
	}

	queued, err := retry.DoWithResult(ctx, s.retryCfg, func() ([]*models.UploadRecord, error) {
		return s.uploadRepo.ListByStatus(ctx, models.UploadStatusQueued)
	})
	if err != nil {
		s.logger.Error("Upload scheduler: failed to list queued uploads", zap.Error(err))
		summary.Aborted = true
		return summary
	}
	summary.Queued = len(queued)

	defer func() {
		s.metrics.RecordTick(summary.Queued, time.Since(start))
	}()

	if len(queued) == 0 {
		return summary
	}
	s.logger.Debug("Upload scheduler: processing queue", zap.Int("count", len(queued)))

	for _, upload := range queued {
		if ctx.Err() != nil {
			return summary
		}
		if err := s.process(ctx, upload, &summary); err != nil {
			s.logger.Error("Upload scheduler: aborting pass",
				zap.Int64("upload_id", upload.ID),
				zap.Error(err))
			summary.Aborted = true
			return summary
		}
	}

	s.logger.Info("Upload scheduler pass completed",
		zap.Int("queued", summary.Queued),
		zap.Int("claimed", summary.Claimed),
		zap.Int("treated", summary.Treated),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(start)))

	return summary
}

// process claims and handles one upload. It returns an error only when a state transition
// could not be recorded; per-upload failures are stored on the record instead.
func (s *uploadScheduler) process(ctx context.Context, upload *models.UploadRecord, summary *TickSummary) error {
	var claimed bool
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		var err error
		claimed, err = s.uploadRepo.Claim(ctx, upload.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: claim upload %d: %v", errTransition, upload.ID, err)
	}
	if !claimed {
		s.metrics.RecordClaimConflict()
		s.logger.Debug("Upload already claimed by another worker", zap.Int64("upload_id", upload.ID))
		return nil
	}
	summary.Claimed++

	s.logger.Info("Processing upload",
		zap.Int64("upload_id", upload.ID),
		zap.Int64("user_id", upload.UserID))

	ingestErr := s.ingest(ctx, upload)

	switch {
	case ingestErr == nil:
		if err := s.finish(ctx, upload, models.UploadStatusTreated, models.UploadMessageTreated, "ok"); err != nil {
			return err
		}
		summary.Treated++
		s.removeFile(upload)
	case errors.Is(ingestErr, apperrors.ErrDuplicateReport):
		if err := s.finish(ctx, upload, models.UploadStatusTreated, models.UploadMessageDuplicate, "duplicate"); err != nil {
			return err
		}
		summary.Duplicates++
		s.removeFile(upload)
	default:
		if ctx.Err() != nil {
			// Cancelled mid-ingest; the record stays PROCESSING.
			return ctx.Err()
		}
		s.logger.Warn("Upload failed",
			zap.Int64("upload_id", upload.ID),
			zap.String("error", logging.SanitizeError(ingestErr)))
		message := fmt.Sprintf(models.UploadMessageFailedFmt, logging.SanitizeUploadMessage(ingestErr, s.uploadDir))
		if err := s.finish(ctx, upload, models.UploadStatusFailed, message, "error"); err != nil {
			return err
		}
		summary.Failed++
	}
	return nil
}

func (s *uploadScheduler) ingest(ctx context.Context, upload *models.UploadRecord) error {
	var owner *models.User
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		var err error
		owner, err = s.userRepo.GetByID(ctx, upload.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("owner %d not found", upload.UserID)
		}
		return fmt.Errorf("failed to load owner: %w", err)
	}

	payload, err := readUploadPayload(upload.Path)
	if err != nil {
		return err
	}

	doc, err := ParseReportDocument(bytes.NewReader(payload))
	if err != nil {
		return err
	}

	_, err = s.ingestion.Ingest(ctx, owner, doc)
	return err
}

func (s *uploadScheduler) finish(ctx context.Context, upload *models.UploadRecord, status models.UploadStatus, message, reason string) error {
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.uploadRepo.Finish(ctx, upload.ID, status, message)
	})
	if err != nil {
		return fmt.Errorf("%w: upload %d to %s: %v", errTransition, upload.ID, status, err)
	}

	s.metrics.RecordFinished(string(status), reason)
	s.logger.Info("Finished processing upload",
		zap.Int64("upload_id", upload.ID),
		zap.String("status", string(status)))
	return nil
}

func (s *uploadScheduler) removeFile(upload *models.UploadRecord) {
	if err := os.Remove(upload.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove treated upload file",
			zap.Int64("upload_id", upload.ID),
			zap.Error(err))
	}
}
