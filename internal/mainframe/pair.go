package mainframe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/strategy"
)

// PairConfig holds the collaborators of a two feed backtest. Index i of every
// array belongs to the same leg.
type PairConfig struct {
	Feeds    [2]Feed
	Brokers  [2]ports.Broker
	Strategy strategy.PairStrategy
	Stops    [2]strategy.StopCalculator
	Logger   ports.Logger
}

// PairMainframe replays two feeds in lock-step through a PairStrategy.
type PairMainframe struct {
	feeds    [2]Feed
	strategy strategy.PairStrategy
	stops    [2]strategy.StopCalculator
	envs     [2]*strategy.Env
	logger   ports.Logger
	runID    string
	candles  int
}

// NewPair validates cfg and prepares a run.
func NewPair(cfg PairConfig) (*PairMainframe, error) {
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("pair mainframe needs a strategy: %w", ports.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = ports.NopLogger{}
	}

	p := &PairMainframe{
		feeds:    cfg.Feeds,
		strategy: cfg.Strategy,
		logger:   cfg.Logger,
		runID:    uuid.NewString(),
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i] == nil || cfg.Brokers[i] == nil {
			return nil, fmt.Errorf("pair mainframe leg %d needs a feed and a broker: %w", i, ports.ErrConfiguration)
		}
		p.stops[i] = strategy.StopsFor(cfg.Strategy, cfg.Stops[i])
		p.envs[i] = strategy.NewEnv(cfg.Brokers[i], cfg.Feeds[i].Symbol(), cfg.Feeds[i].Timeframe())
	}
	return p, nil
}

// RunID identifies the run in logs.
func (p *PairMainframe) RunID() string { return p.runID }

// Candles returns how many candle pairs were processed.
func (p *PairMainframe) Candles() int { return p.candles }

// Envs exposes both legs.
func (p *PairMainframe) Envs() [2]*strategy.Env { return p.envs }

// Backtest preloads both feeds concurrently and processes candle pairs until
// either feed is drained. The longer feed is not drained further.
func (p *PairMainframe) Backtest(ctx context.Context) error {
	fields := map[string]interface{}{
		"run_id":   p.runID,
		"strategy": p.strategy.Name(),
		"legs":     []string{p.feeds[0].Symbol(), p.feeds[1].Symbol()},
	}
	p.logger.Info(ctx, "Pair backtest started", fields)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range p.feeds {
		g.Go(func() error {
			if err := f.Preload(gctx); err != nil {
				return fmt.Errorf("preload %s: %w", f.Symbol(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error(ctx, err, "Preload failed", fields)
		return fmt.Errorf("pair backtest %s: %w", p.runID, err)
	}

	for !p.feeds[0].IsLast() && !p.feeds[1].IsLast() {
		if err := interrupted(ctx); err != nil {
			return fmt.Errorf("pair backtest %s after %d candles: %w", p.runID, p.candles, err)
		}

		var candles [2]domain.Candle
		for i, f := range p.feeds {
			c, err := f.Next(ctx)
			if err != nil {
				p.logger.Error(ctx, err, "Feed failed", fields)
				return fmt.Errorf("pair backtest %s after %d candles: %w", p.runID, p.candles, err)
			}
			candles[i] = c
		}

		for i := range p.envs {
			if err := strategy.OnBeforeUpdate(ctx, p.envs[i], p.stops[i], candles[i]); err != nil {
				return fmt.Errorf("pair backtest %s leg %d: %w", p.runID, i, err)
			}
		}
		if err := p.strategy.UpdatePair(ctx, candles, p.envs); err != nil {
			return fmt.Errorf("pair backtest %s: %s update on candle %d: %w", p.runID, p.strategy.Name(), candles[0].OpenTime, err)
		}
		p.candles++
	}

	p.logger.Info(ctx, "Pair backtest finished", merge(fields, map[string]interface{}{
		"candles":  p.candles,
		"duration": time.Since(start).String(),
	}))
	return nil
}
