package app

import (
	"context"
	"fmt"

	"candleBacktester/internal/broker"
	"candleBacktester/internal/datafeed"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/mainframe"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/risk"
	"candleBacktester/internal/strategy/indicators"
	"candleBacktester/internal/strategy/optimization"
	"candleBacktester/internal/strategy/strategies"
)

// Parameter names understood by the MA crossover sweep. Names missing from
// a grid fall back to the configured values.
const (
	ParamFastMA     = "fast_ma"
	ParamSlowMA     = "slow_ma"
	ParamStopLoss   = "stop_loss"
	ParamTakeProfit = "take_profit"
)

// DefaultSweep is the MA crossover grid used when none is given.
func DefaultSweep() []optimization.ParameterRange {
	return []optimization.ParameterRange{
		{Name: ParamFastMA, Min: 5, Max: 20, Step: 5, IsInt: true},
		{Name: ParamSlowMA, Min: 20, Max: 60, Step: 10, IsInt: true},
		{Name: ParamStopLoss, Min: 0, Max: 0.03, Step: 0.01},
	}
}

// Optimize loads cfg.Symbol once and backtests the MA crossover over every
// point of ranges. Results are sorted best first.
func (s *BacktestService) Optimize(ctx context.Context, ranges []optimization.ParameterRange, concurrency int) ([]optimization.OptimizationResult, error) {
	loader, err := s.loader(ctx, s.cfg.Symbol, s.cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("data source %s for %s: %w", s.cfg.DataSource, s.cfg.Symbol, err)
	}
	candles, err := datafeed.Drain(ctx, loader)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w: %w", s.cfg.Symbol, ports.ErrSourceFetch, err)
	}
	s.logger.Info(ctx, "Optimization data loaded", map[string]interface{}{
		"symbol":  s.cfg.Symbol,
		"candles": len(candles),
	})

	opt := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: ranges,
		Concurrency:     concurrency,
		FeeRate:         s.cfg.FeeRate,
		Logger:          s.logger,
	})
	return opt.Optimize(ctx, s.crossoverFactory(candles))
}

// crossoverFactory builds an independent feed, broker and strategy per grid
// point. The candle slice is shared read-only.
func (s *BacktestService) crossoverFactory(candles []domain.Candle) optimization.Factory {
	return func(p optimization.Params) (mainframe.Config, error) {
		stops := risk.PercentStops{
			StopLossPercent:   param(p, ParamStopLoss, s.cfg.StopLoss),
			TakeProfitPercent: param(p, ParamTakeProfit, s.cfg.TakeProfit),
		}
		strat, err := strategies.NewMACrossover(strategies.MACrossoverConfig{
			FastMAPeriod: int(param(p, ParamFastMA, float64(s.cfg.StrategyFastMAPeriod))),
			SlowMAPeriod: int(param(p, ParamSlowMA, float64(s.cfg.StrategySlowMAPeriod))),
			MAType:       indicators.MovingAverageType(s.cfg.StrategyMAType),
			AllowShort:   s.cfg.StrategyAllowShort,
			Stops:        stops,

			RSIPeriod:     s.cfg.StrategyRSIPeriod,
			RSIOverbought: s.cfg.StrategyRSIOverbought,
			RSIOversold:   s.cfg.StrategyRSIOversold,
		}, ports.NopLogger{})
		if err != nil {
			return mainframe.Config{}, fmt.Errorf("%w: %w", ports.ErrConfiguration, err)
		}
		return mainframe.Config{
			Feed:     datafeed.New[domain.Candle](s.cfg.Symbol, s.cfg.Timeframe, datafeed.NewSliceLoader(candles, s.cfg.ChunkLimit)),
			Broker:   broker.NewMemoryBroker(nil),
			Strategy: strat,
			Stops:    stops,
		}, nil
	}
}

func param(p optimization.Params, name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}
