// Package main implements the entry point for the mintpipe server, the
// coordinator that turns NFT purchases into generated artwork and
// finalized mints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tabbylabs/mintpipe/internal/config"
	"github.com/tabbylabs/mintpipe/internal/platform/logger"
	"github.com/tabbylabs/mintpipe/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("Failed to start mintpipe: %v", err)
	}
}

// run loads configuration, wires the application, and either executes a
// one-shot migration command or serves until shutdown.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_token_id", cfg.Chain.MaxTokenID,
		"mint_concurrency", cfg.Mint.Concurrency)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if migrateCmd != "" {
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", "error", err)
			}
		}()
		if err := postgres.Migrate(db, migrateCmd); err != nil {
			return fmt.Errorf("migration %q failed: %w", migrateCmd, err)
		}
		appLogger.Info("Migration command completed", "command", migrateCmd)
		return nil
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		// The application owns the connection once wiring starts; on a
		// wiring failure it has not taken ownership yet.
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
