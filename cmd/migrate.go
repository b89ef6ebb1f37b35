package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"kyri56xcaesar/taskhub/internal/config"
	"kyri56xcaesar/taskhub/internal/logger"
	"kyri56xcaesar/taskhub/internal/store"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run postgres schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(false)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(true)
	},
}

func runMigrate(down bool) error {
	cfg := config.Load(configPath)
	logger.Init(cfg.LogFormat, cfg.Verbose)
	cfg.Report()
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrations only apply to the postgres backend, STORE_BACKEND is %q", cfg.StoreBackend)
	}

	if err := store.Migrate(cfg.PostgresURL(), down); err != nil {
		return err
	}
	log.Info().Bool("down", down).Str("db", cfg.DBName).Msg("migrations applied")
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
