package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
	"github.com/Daylily-Informatics/UltraQC/pkg/config"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/handlers"
	"github.com/Daylily-Informatics/UltraQC/pkg/metrics"
	"github.com/Daylily-Informatics/UltraQC/pkg/middleware"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

const shutdownTimeout = 15 * time.Second

func serveCommand(opts *options) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the upload scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSecrets(); err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			if !skipMigrations {
				if err := migrate(cfg, logger); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations at startup")
	return cmd
}

// serve runs the HTTP server and, if enabled, the upload scheduler until ctx is cancelled
// or either of them fails.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ingestMetrics, err := metrics.NewIngestionMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register ingestion metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register HTTP metrics: %w", err)
	}

	a, err := newApp(ctx, cfg, ingestMetrics, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tokens, err := auth.NewSessionTokens(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	authService := auth.NewAuthService(
		tokens,
		a.userRepo,
		auth.NewAPITokenCache(cfg.Auth.APITokenCacheTTL),
		auth.ServiceOptions{
			APITokenHeader:    cfg.Auth.APITokenHeader,
			SessionCookieName: cfg.Auth.SessionCookieName,
		},
		logger,
	)
	authMiddleware := auth.NewMiddleware(authService, logger)
	scope := handlers.ScopeMiddleware(database.WithScope(a.db, logger))

	uploadService := services.NewUploadService(a.uploadRepo, cfg.Uploads.Dir, cfg.Uploads.MaxBytes, ingestMetrics, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, a.db, logger).RegisterRoutes(mux)
	handlers.RegisterMetricsRoute(mux, registry)
	handlers.NewUploadsHandler(uploadService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewUploadParseHandler(a.ingestion, cfg.Uploads.MaxBytes, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewMetricTypesHandler(services.NewMetricTypeService(a.metricRepo, logger), logger).
		RegisterRoutes(mux, authMiddleware, scope)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger, httpMetrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting ultraqc",
			zap.String("addr", server.Addr),
			zap.String("base_url", cfg.BaseURL),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env))

		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if cfg.Uploads.SchedulerEnabled {
		g.Go(func() error {
			a.scheduler.Run(gctx, cfg.Uploads.ScanInterval)
			return nil
		})
	} else {
		logger.Info("Upload scheduler disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
