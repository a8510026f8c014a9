package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Daylily-Informatics/UltraQC/pkg/auth"
)

func tokenCommand(opts *options) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for a user",
		Args:  cobra.NoArgs,
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

			a, err := newApp(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.userRepo.GetByID(a.db.WithPoolScope(cmd.Context()), userID)
			if err != nil {
				return fmt.Errorf("failed to load user %d: %w", userID, err)
			}
			if !user.Active {
				return fmt.Errorf("user %d is inactive", userID)
			}

			tokens, err := auth.NewSessionTokens(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
			if err != nil {
				return err
			}
			signed, err := tokens.Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "ID of the user to issue the token for (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
