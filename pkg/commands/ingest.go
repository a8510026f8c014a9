package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
	"github.com/Daylily-Informatics/UltraQC/pkg/repositories"
	"github.com/Daylily-Informatics/UltraQC/pkg/services"
)

func ingestCommand(opts *options) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest a MultiQC JSON report directly, bypassing the upload queue",
		Long: "Ingest reads a multiqc_data.json file (optionally gzipped), stores it for the\n" +
			"given user in one transaction and prints the ingestion summary as JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := ingestFile(a.db.WithPoolScope(ctx), a.userRepo, a.ingestion, userID, f)
			if err != nil {
				return err
			}
			logger.Debug("Ingested report file", zap.String("file", args[0]))
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "ID of the user who owns the report (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ingestFile resolves the owner and ingests one report stream.
func ingestFile(
	ctx context.Context,
	userRepo repositories.UserRepository,
	ingestion services.IngestionService,
	userID int64,
	r io.Reader,
) (*services.IngestResult, error) {
	owner, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("user %d not found", userID)
		}
		return nil, err
	}
	if !owner.Active {
		return nil, fmt.Errorf("user %d: %w", userID, apperrors.ErrInactiveUser)
	}

	result, err := services.IngestPayload(ctx, ingestion, owner, r)
	if errors.Is(err, apperrors.ErrDuplicateReport) {
		return nil, errors.New(models.UploadMessageDuplicate)
	}
	return result, err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
