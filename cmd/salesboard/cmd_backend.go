package main

import (
	"salesboard/internal/app"
	"salesboard/internal/logger"

	"github.com/spf13/cobra"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run only the reference sales API",
	Long: `Serve GET /api/sales?stat=&cohort= from the SQLite database at
backend.db_path, seeding it from backend.seed_path when empty.`,
	RunE: runBackend,
}

func runBackend(cmd *cobra.Command, args []string) error {
	cfg, logFile, err := loadConfig()
	if err != nil {
		return err
	}
	defer logFile.Close()

	backend, err := app.BuildBackend(cmd.Context(), cfg.Backend)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range backend.Closers {
			if err := c(); err != nil {
				logger.Warnf("close backend resource: %v", err)
			}
		}
	}()
	logger.Infof("sales backend ready: %d sales in %s", backend.Rows, cfg.Backend.DBPath)

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return backend.Server.Start(ctx)
}
