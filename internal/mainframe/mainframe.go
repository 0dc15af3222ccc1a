// Package mainframe drives backtests: it drains candle feeds and runs the
// pre-update protocol and the strategy for every candle.
package mainframe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/strategy"
)

// Feed is the candle source consumed by a backtest. *datafeed.Feed[domain.Candle]
// satisfies it.
type Feed interface {
	Symbol() string
	Timeframe() domain.Timeframe
	Preload(ctx context.Context) error
	Next(ctx context.Context) (domain.Candle, error)
	IsLast() bool
}

// Config holds the collaborators of a single feed backtest.
type Config struct {
	Feed     Feed
	Broker   ports.Broker
	Strategy strategy.Strategy
	// Stops sets levels for scheduled opens. When nil the strategy's own
	// StopCalculator is used if it has one.
	Stops  strategy.StopCalculator
	Logger ports.Logger
}

// Mainframe runs one strategy over one feed. A Mainframe is single use.
type Mainframe struct {
	feed     Feed
	strategy strategy.Strategy
	stops    strategy.StopCalculator
	env      *strategy.Env
	logger   ports.Logger
	runID    string
	candles  int
}

// New validates cfg and prepares a run.
func New(cfg Config) (*Mainframe, error) {
	if cfg.Feed == nil || cfg.Broker == nil || cfg.Strategy == nil {
		return nil, fmt.Errorf("mainframe needs a feed, a broker and a strategy: %w", ports.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = ports.NopLogger{}
	}
	return &Mainframe{
		feed:     cfg.Feed,
		strategy: cfg.Strategy,
		stops:    strategy.StopsFor(cfg.Strategy, cfg.Stops),
		env:      strategy.NewEnv(cfg.Broker, cfg.Feed.Symbol(), cfg.Feed.Timeframe()),
		logger:   cfg.Logger,
		runID:    uuid.NewString(),
	}, nil
}

// RunID identifies the run in logs.
func (m *Mainframe) RunID() string { return m.runID }

// Candles returns how many candles were processed.
func (m *Mainframe) Candles() int { return m.candles }

// Env exposes the broker and pending state the strategy works with.
func (m *Mainframe) Env() *strategy.Env { return m.env }

// Backtest preloads the feed and processes candles until it is drained.
// The first error aborts the run; broker state is left as is.
func (m *Mainframe) Backtest(ctx context.Context) error {
	fields := map[string]interface{}{
		"run_id":    m.runID,
		"strategy":  m.strategy.Name(),
		"symbol":    m.feed.Symbol(),
		"timeframe": m.feed.Timeframe().String(),
	}
	m.logger.Info(ctx, "Backtest started", fields)
	start := time.Now()

	if err := m.feed.Preload(ctx); err != nil {
		m.logger.Error(ctx, err, "Preload failed", fields)
		return fmt.Errorf("backtest %s: preload: %w", m.runID, err)
	}

	for !m.feed.IsLast() {
		if err := interrupted(ctx); err != nil {
			return fmt.Errorf("backtest %s after %d candles: %w", m.runID, m.candles, err)
		}

		candle, err := m.feed.Next(ctx)
		if err != nil {
			m.logger.Error(ctx, err, "Feed failed", fields)
			return fmt.Errorf("backtest %s after %d candles: %w", m.runID, m.candles, err)
		}

		if err := strategy.OnBeforeUpdate(ctx, m.env, m.stops, candle); err != nil {
			return fmt.Errorf("backtest %s: %w", m.runID, err)
		}
		if err := m.strategy.Update(ctx, candle, m.env); err != nil {
			return fmt.Errorf("backtest %s: %s update on candle %d: %w", m.runID, m.strategy.Name(), candle.OpenTime, err)
		}
		m.candles++
	}

	m.logger.Info(ctx, "Backtest finished", merge(fields, map[string]interface{}{
		"candles":  m.candles,
		"duration": time.Since(start).String(),
	}))
	return nil
}

func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}
	return nil
}

func merge(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
