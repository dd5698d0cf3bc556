package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/output"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the document store",
		Long: `dbstore.Open applies every pending migration as part of opening the
database, so this command exists mainly to run that step (and report
the resulting schema state) without also starting the full server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}
}

func runMigrate(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out.Status("", fmt.Sprintf("Opening %s", cfg.DBPath()))
	store, err := dbstore.Open(cfg.DBPath(), cfg.Storage.SQLiteCacheMB)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer store.Close()

	out.Success("Database is up to date")
	return nil
}
