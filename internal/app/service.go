// Package app wires configuration, data sources and the backtest engine
// together.
package app

import (
	"context"
	"errors"
	"fmt"

	"candleBacktester/config"
	"candleBacktester/internal/adapters/binanceclient"
	"candleBacktester/internal/adapters/bybit"
	"candleBacktester/internal/adapters/sqlite"
	"candleBacktester/internal/broker"
	"candleBacktester/internal/datafeed"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/mainframe"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/risk"
	"candleBacktester/internal/strategy"
	"candleBacktester/internal/strategy/analytics"
	"candleBacktester/internal/strategy/indicators"
	"candleBacktester/internal/strategy/strategies"
	"candleBacktester/internal/utils"
)

// LegReport is the outcome of one traded series.
type LegReport struct {
	Symbol    string
	Positions []*domain.Position
	Summary   analytics.Summary
}

// Report is the outcome of a backtest run.
type Report struct {
	RunID   string
	Candles int
	Legs    []LegReport
}

// BacktestService builds and runs backtests from a Config.
type BacktestService struct {
	cfg    *config.Config
	logger ports.Logger

	// Lazily created data source clients
	store   *sqlite.CandleStore
	binance *binanceclient.Client
	bybit   *bybit.Client
}

// NewBacktestService creates a new application service instance.
func NewBacktestService(cfg *config.Config, logger ports.Logger) (*BacktestService, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for BacktestService: %w", ports.ErrConfiguration)
	}
	return &BacktestService{cfg: cfg, logger: logger}, nil
}

// Close releases the data sources opened by the service.
func (s *BacktestService) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Run executes a pair backtest when a pair symbol is configured, a single
// feed backtest otherwise.
func (s *BacktestService) Run(ctx context.Context) (*Report, error) {
	if s.cfg.PairMode() {
		return s.RunPair(ctx)
	}
	return s.RunSingle(ctx)
}

// RunSingle replays cfg.Symbol through the MA crossover strategy.
func (s *BacktestService) RunSingle(ctx context.Context) (*Report, error) {
	feed, err := s.feed(ctx, s.cfg.Symbol, s.cfg.CSVPath)
	if err != nil {
		return nil, err
	}
	stops, err := s.stops()
	if err != nil {
		return nil, err
	}
	strat, err := strategies.NewMACrossover(strategies.MACrossoverConfig{
		FastMAPeriod: s.cfg.StrategyFastMAPeriod,
		SlowMAPeriod: s.cfg.StrategySlowMAPeriod,
		MAType:       indicators.MovingAverageType(s.cfg.StrategyMAType),
		AllowShort:   s.cfg.StrategyAllowShort,
		Stops:        stops,

		RSIPeriod:     s.cfg.StrategyRSIPeriod,
		RSIOverbought: s.cfg.StrategyRSIOverbought,
		RSIOversold:   s.cfg.StrategyRSIOversold,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w: %w", ports.ErrConfiguration, err)
	}

	b := broker.NewMemoryBroker(s.logger)
	mf, err := mainframe.New(mainframe.Config{
		Feed:     feed,
		Broker:   b,
		Strategy: strat,
		Stops:    stops,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := mf.Backtest(ctx); err != nil {
		return nil, err
	}

	report := &Report{RunID: mf.RunID(), Candles: mf.Candles()}
	report.Legs = append(report.Legs, s.summarize(ctx, report.RunID, s.cfg.Symbol, b))
	return report, nil
}

// RunPair replays cfg.Symbol and cfg.PairSymbol in lock-step through the
// spread reversion strategy.
func (s *BacktestService) RunPair(ctx context.Context) (*Report, error) {
	symbols := [2]string{s.cfg.Symbol, s.cfg.PairSymbol}
	paths := [2]string{s.cfg.CSVPath, s.cfg.PairCSVPath}

	var cfg mainframe.PairConfig
	var brokers [2]*broker.MemoryBroker
	for i := range symbols {
		feed, err := s.feed(ctx, symbols[i], paths[i])
		if err != nil {
			return nil, err
		}
		stops, err := s.stops()
		if err != nil {
			return nil, err
		}
		brokers[i] = broker.NewMemoryBroker(s.logger)
		cfg.Feeds[i] = feed
		cfg.Brokers[i] = brokers[i]
		cfg.Stops[i] = stops
	}

	strat, err := strategies.NewSpreadReversion(strategies.SpreadReversionConfig{
		EntryThreshold: s.cfg.SpreadThreshold,
		ExitThreshold:  s.cfg.SpreadExitThreshold,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pair strategy: %w: %w", ports.ErrConfiguration, err)
	}
	cfg.Strategy = strat
	cfg.Logger = s.logger

	mf, err := mainframe.NewPair(cfg)
	if err != nil {
		return nil, err
	}
	if err := mf.Backtest(ctx); err != nil {
		return nil, err
	}

	report := &Report{RunID: mf.RunID(), Candles: mf.Candles()}
	for i, b := range brokers {
		report.Legs = append(report.Legs, s.summarize(ctx, report.RunID, symbols[i], b))
	}
	return report, nil
}

func (s *BacktestService) summarize(ctx context.Context, runID, symbol string, b *broker.MemoryBroker) LegReport {
	positions := b.Positions()
	summary := analytics.Summarize(positions,
		analytics.WithFeeRate(s.cfg.FeeRate),
		analytics.WithStartBalance(s.cfg.StartBalance),
	)
	fields := summary.LogFields()
	fields["run_id"] = runID
	fields["symbol"] = symbol
	s.logger.Info(ctx, "Backtest summary", fields)
	return LegReport{Symbol: symbol, Positions: positions, Summary: summary}
}

// stops returns a fresh calculator per leg since ATR stops keep state. Nil
// means no levels.
func (s *BacktestService) stops() (strategy.StopCalculator, error) {
	switch {
	case s.cfg.ATRPeriod > 0:
		atr, err := risk.NewATRStops(s.cfg.ATRPeriod, s.cfg.ATRMultiplier, s.cfg.ATRRewardRatio)
		if err != nil {
			return nil, fmt.Errorf("failed to create ATR stops: %w: %w", ports.ErrConfiguration, err)
		}
		return atr, nil
	case s.cfg.StopLoss > 0 || s.cfg.TakeProfit > 0:
		return risk.PercentStops{StopLossPercent: s.cfg.StopLoss, TakeProfitPercent: s.cfg.TakeProfit}, nil
	default:
		return nil, nil
	}
}

func (s *BacktestService) feed(ctx context.Context, symbol, csvPath string) (*datafeed.Feed[domain.Candle], error) {
	loader, err := s.loader(ctx, symbol, csvPath)
	if err != nil {
		return nil, fmt.Errorf("data source %s for %s: %w", s.cfg.DataSource, symbol, err)
	}
	return datafeed.New[domain.Candle](symbol, s.cfg.Timeframe, loader), nil
}

func (s *BacktestService) loader(ctx context.Context, symbol, csvPath string) (ports.ChunkLoader[domain.Candle], error) {
	start, end := s.cfg.StartMs(), s.cfg.EndMs()
	switch s.cfg.DataSource {
	case config.SourceCSV:
		candles, err := utils.ReadCandlesFromCSV(csvPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w: %w", csvPath, ports.ErrSourceFetch, err)
		}
		candles = inRange(candles, start, end)
		s.logger.Debug(ctx, "Loaded candles from CSV", map[string]interface{}{"path": csvPath, "count": len(candles)})
		return datafeed.NewSliceLoader(candles, s.cfg.ChunkLimit), nil

	case config.SourceSQLite:
		if s.store == nil {
			store, err := sqlite.NewCandleStore(sqlite.Config{DBPath: s.cfg.DBPath, Logger: s.logger})
			if err != nil {
				return nil, err
			}
			s.store = store
		}
		return s.store.Loader(symbol, s.cfg.Timeframe, start, end, s.cfg.ChunkLimit), nil

	case config.SourceBinance:
		if s.binance == nil {
			client, err := binanceclient.New(binanceclient.Config{
				APIKey:     s.cfg.APIKey,
				SecretKey:  s.cfg.SecretKey,
				UseTestnet: s.cfg.IsTestnet,
				Logger:     s.logger,
			})
			if err != nil {
				return nil, err
			}
			if err := client.Ping(ctx); err != nil {
				return nil, err
			}
			s.binance = client
		}
		return s.binance.KlineLoader(symbol, s.cfg.Timeframe, start, end, s.cfg.ChunkLimit), nil

	case config.SourceBybit:
		if s.bybit == nil {
			client, err := bybit.New(bybit.Config{
				BaseURL:  s.cfg.BybitBaseURL,
				Category: s.cfg.BybitCategory,
				Logger:   s.logger,
			})
			if err != nil {
				return nil, err
			}
			s.bybit = client
		}
		return s.bybit.KlineLoader(symbol, s.cfg.Timeframe, start, end, s.cfg.ChunkLimit)

	default:
		return nil, fmt.Errorf("unknown data source %q: %w", s.cfg.DataSource, ports.ErrConfiguration)
	}
}

// inRange keeps candles with start <= open time <= end. A zero end is open.
func inRange(candles []domain.Candle, start, end int64) []domain.Candle {
	out := candles[:0]
	for _, c := range candles {
		if c.OpenTime < start || (end > 0 && c.OpenTime > end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsConfigError reports whether err stems from bad configuration rather
// than a data or runtime failure.
func IsConfigError(err error) bool {
	return errors.Is(err, ports.ErrConfiguration)
}
