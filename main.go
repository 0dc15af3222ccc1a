package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"candleBacktester/config"
	"candleBacktester/internal/adapters/logger"
	"candleBacktester/internal/app"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewSlogLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Cancel the run on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Initialize Application Service
	svc, err := app.NewBacktestService(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	// 5. Run
	report, err := svc.Run(ctx)
	if closeErr := svc.Close(); closeErr != nil {
		appLogger.Error(ctx, closeErr, "Error closing data source")
	}
	if err != nil {
		appLogger.Error(ctx, err, "Backtest failed", map[string]interface{}{"config_error": app.IsConfigError(err)})
		stop()
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	appLogger.Info(ctx, "Backtest complete", map[string]interface{}{
		"run_id":  report.RunID,
		"candles": report.Candles,
		"legs":    len(report.Legs),
	})
}
