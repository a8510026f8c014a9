// Package commands implements the ultraqc command line.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Daylily-Informatics/UltraQC/pkg/config"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	version    string
}

// load reads the effective configuration for a subcommand.
func (o *options) load() (*config.Config, error) {
	return config.Load(o.configPath, o.version)
}

// RootCommand creates the ultraqc root command with all subcommands attached.
func RootCommand(version string) *cobra.Command {
	opts := &options{version: version}

	rootCmd := &cobra.Command{
		Use:           "ultraqc",
		Short:         "UltraQC report ingestion server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to config file (default ./"+config.DefaultPath+" if present)")

	rootCmd.AddCommand(
		serveCommand(opts),
		migrateCommand(opts),
		ingestCommand(opts),
		processCommand(opts),
		tokenCommand(opts),
		configCommand(opts),
	)
	return rootCmd
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCommand(version).ExecuteContext(ctx)
}
