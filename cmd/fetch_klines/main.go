// Command fetch_klines downloads candles from an exchange into the sqlite
// candle store and a CSV file per symbol, for offline backtests.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"candleBacktester/config"
	"candleBacktester/internal/adapters/binanceclient"
	"candleBacktester/internal/adapters/bybit"
	"candleBacktester/internal/adapters/logger"
	"candleBacktester/internal/adapters/sqlite"
	"candleBacktester/internal/datafeed"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewSlogLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	end := cfg.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := cfg.StartTime
	if start.IsZero() {
		start = end.AddDate(0, -3, 0) // 3 months ago
	}

	// 3. Initialize the exchange loader factory
	newLoader, err := loaderFactory(cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize exchange client: %v", err)
	}

	// 4. Download every symbol concurrently
	symbols := []string{cfg.Symbol}
	if cfg.PairMode() {
		symbols = append(symbols, cfg.PairSymbol)
	}
	results := make([][]domain.Candle, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		g.Go(func() error {
			loader, err := newLoader(symbol, cfg.Timeframe, start.UnixMilli(), end.UnixMilli(), cfg.ChunkLimit)
			if err != nil {
				return err
			}
			candles, err := datafeed.Drain(gctx, loader)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", symbol, err)
			}
			appLogger.Info(gctx, "Fetched klines", map[string]interface{}{"symbol": symbol, "count": len(candles)})
			results[i] = candles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		appLogger.Error(ctx, err, "Error fetching klines")
		stop()
		log.Fatalf("Error fetching klines: %v", err)
	}

	// 5. Persist, sequentially since sqlite has a single writer
	store, err := sqlite.NewCandleStore(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		stop()
		log.Fatalf("FATAL: Failed to open candle store: %v", err)
	}
	defer store.Close()

	for i, symbol := range symbols {
		if err := store.SaveCandles(ctx, symbol, cfg.Timeframe, results[i]); err != nil {
			appLogger.Error(ctx, err, "Error saving candles", map[string]interface{}{"symbol": symbol})
			continue
		}
		filename := filepath.Join("data", fmt.Sprintf("%s_%s_%s_to_%s.csv", symbol, cfg.Timeframe, start.Format("20060102"), end.Format("20060102")))
		if err := utils.WriteCandlesToCSV(results[i], filename); err != nil {
			appLogger.Error(ctx, err, "Error writing CSV", map[string]interface{}{"symbol": symbol})
			continue
		}
		appLogger.Info(ctx, "Saved candles", map[string]interface{}{"symbol": symbol, "db": cfg.DBPath, "filename": filename})
	}
}

type loaderFunc func(symbol string, tf domain.Timeframe, start, end int64, limit int) (ports.ChunkLoader[domain.Candle], error)

// loaderFactory picks Bybit when configured as the data source, Binance otherwise.
func loaderFactory(cfg *config.Config, appLogger ports.Logger) (loaderFunc, error) {
	if cfg.DataSource == config.SourceBybit {
		client, err := bybit.New(bybit.Config{BaseURL: cfg.BybitBaseURL, Category: cfg.BybitCategory, Logger: appLogger})
		if err != nil {
			return nil, err
		}
		return func(symbol string, tf domain.Timeframe, start, end int64, limit int) (ports.ChunkLoader[domain.Candle], error) {
			return client.KlineLoader(symbol, tf, start, end, limit)
		}, nil
	}

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		return nil, err
	}
	return func(symbol string, tf domain.Timeframe, start, end int64, limit int) (ports.ChunkLoader[domain.Candle], error) {
		return client.KlineLoader(symbol, tf, start, end, limit), nil
	}, nil
}
