package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/config"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/logging"
	"github.com/Daylily-Informatics/UltraQC/pkg/metrics"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

// newLogger builds a development logger for the local environment and a JSON
// production logger everywhere else.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// app holds the repositories and services shared by the subcommands.
type app struct {
	db         *database.DB
	userRepo   repositories.UserRepository
	uploadRepo repositories.UploadRepository
	metricRepo repositories.MetricRepository
	ingestion  services.IngestionService
	scheduler  services.UploadScheduler
}

// newApp connects to PostgreSQL and wires the ingestion pipeline. m may be nil.
func newApp(ctx context.Context, cfg *config.Config, m *metrics.IngestionMetrics, logger *zap.Logger) (*app, error) {
	logger.Info("Connecting to database",
		zap.String("url", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		db:         db,
		userRepo:   repositories.NewUserRepository(),
		uploadRepo: repositories.NewUploadRepository(),
		metricRepo: repositories.NewMetricRepository(),
	}
	a.ingestion = services.NewIngestionService(
		db,
		repositories.NewReportRepository(),
		repositories.NewSampleRepository(),
		a.metricRepo,
		repositories.NewPlotRepository(),
		m,
		logger,
	)
	a.scheduler = services.NewUploadScheduler(db, a.uploadRepo, a.userRepo, a.ingestion, cfg.Uploads.Dir, m, logger)
	return a, nil
}

func (a *app) Close() {
	a.db.Close()
}
