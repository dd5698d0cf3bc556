// Package cmd provides the seneschald CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jhelwig/seneschal-program-sub001/internal/logging"
	"github.com/jhelwig/seneschal-program-sub001/pkg/version"
)

var (
	debugMode      bool
	configDir      string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the seneschald CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "seneschald",
		Short:   "Retrieval and tool-dispatch backend for a tabletop RPG assistant",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("seneschald version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.seneschal/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory containing seneschal.yaml (defaults to the working directory and the user config)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newImportCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(*cobra.Command, []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(*cobra.Command, []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
