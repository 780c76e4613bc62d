// Package cmd implements repairctl, the maintenance CLI of the repair shop.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/app"
)

var rootCmd = &cobra.Command{
	Use:   "repairctl",
	Short: "Maintenance commands for the repair shop",
	Long: `repairctl runs the jobs that live outside the HTTP server:
the daily software renewal sweep (meant for cron), order exports,
inventory imports, schema migration and staff token issuing.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() { _ = godotenv.Load() })
}

// loadConfig reads the same configuration as the server.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.InitLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// withApp connects, runs fn and closes the connections.
func withApp(ctx context.Context, migrate bool, fn func(a *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger, migrate)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
