// FraudWatch - Fraud detection platform for financial operations teams
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/nvellore/fraudwatch/internal/config"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load .env if present (development convenience)
	_ = godotenv.Load()

	// Create logger
	logger := logging.New("info", "text")

	logger.Info("starting fraudwatch",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"spam_rule", cfg.SpamRule,
		"summary_interval", cfg.SummaryInterval,
	)

	// Create and run server
	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
