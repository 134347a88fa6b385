package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rogerbox/internal/config"
	"rogerbox/internal/infra"
)

var Version = "dev"

// cliApp carries what the commands need to reach the database and logger.
// Tests swap openDB for an in-memory database.
type cliApp struct {
	loadConfig func() (*config.Config, error)
	openDB     func(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error)
	logger     *zap.Logger
}

func main() {
	logger, err := infra.NewLogger(false, "warn")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app := &cliApp{
		loadConfig: config.Load,
		openDB: func(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
			if cfg.Database.URL == "" {
				return nil, fmt.Errorf("DATABASE_URL is required")
			}
			return infra.InitPostgresql(infra.PostgresConfig{DSN: cfg.Database.URL}, logger)
		},
		logger: logger,
	}

	if err := newRootCmd(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(app *cliApp) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Operator tooling for RogerBox payments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(signCmd(app))
	rootCmd.AddCommand(replayCmd(app))
	rootCmd.AddCommand(expiredCmd(app))
	rootCmd.AddCommand(transactionCmd(app))

	return rootCmd
}
