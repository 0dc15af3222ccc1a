// Command backtest_runner sweeps the MA crossover parameters over the
// configured data source and logs the best combinations.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"candleBacktester/config"
	"candleBacktester/internal/adapters/logger"
	"candleBacktester/internal/app"
)

func main() {
	workers := flag.Int("workers", 0, "parallel backtests, GOMAXPROCS when 0")
	top := flag.Int("top", 5, "number of results to log")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewSlogLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Application Service
	svc, err := app.NewBacktestService(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtest service: %v", err)
	}

	// 3. Run the sweep
	results, err := svc.Optimize(ctx, app.DefaultSweep(), *workers)
	if closeErr := svc.Close(); closeErr != nil {
		appLogger.Error(ctx, closeErr, "Error closing data source")
	}
	if err != nil {
		appLogger.Error(ctx, err, "Optimization failed")
		stop()
		log.Fatalf("FATAL: Optimization failed: %v", err)
	}

	for i, r := range results {
		if i >= *top {
			break
		}
		fields := r.Summary.LogFields()
		fields["rank"] = i + 1
		fields["score"] = r.Score
		for name, v := range r.Parameters {
			fields[name] = v
		}
		appLogger.Info(ctx, "Optimization result", fields)
	}
}
