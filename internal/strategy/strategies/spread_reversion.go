package strategies

import (
	"context"
	"fmt"
	"math"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/strategy"
)

// SpreadReversionConfig holds configuration for the SpreadReversion pair strategy
type SpreadReversionConfig struct {
	EntryThreshold float64 // relative spread that opens the pair (e.g., 0.002 for 0.2%)
	ExitThreshold  float64 // relative spread at or below which the pair is closed
}

// SpreadReversion trades the same instrument quoted by two sources. When the
// first leg trades rich against the second it shorts the first and buys the
// second, and the other way round. Both legs are closed once the spread
// reverts inside the exit band.
type SpreadReversion struct {
	*BaseStrategy
	config SpreadReversionConfig
}

var _ strategy.PairStrategy = (*SpreadReversion)(nil)

// NewSpreadReversion creates a new spread reversion strategy instance
func NewSpreadReversion(config SpreadReversionConfig, logger ports.Logger) (*SpreadReversion, error) {
	if config.EntryThreshold <= 0 {
		return nil, fmt.Errorf("entry threshold must be positive")
	}
	if config.ExitThreshold < 0 || config.ExitThreshold >= config.EntryThreshold {
		return nil, fmt.Errorf("exit threshold must be in [0, entry threshold)")
	}
	base, err := NewBaseStrategy("Spread Reversion", logger)
	if err != nil {
		return nil, err
	}
	return &SpreadReversion{BaseStrategy: base, config: config}, nil
}

// Spread is the relative premium of a over b.
func Spread(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a/b - 1
}

// UpdatePair evaluates the spread of the two closes.
func (s *SpreadReversion) UpdatePair(ctx context.Context, candles [2]domain.Candle, legs [2]*strategy.Env) error {
	if legs[0].State.Pending() || legs[1].State.Pending() {
		return nil
	}

	spread := Spread(candles[0].Close, candles[1].Close)
	inPosition := legs[0].Broker.IsInPosition() || legs[1].Broker.IsInPosition()

	if inPosition {
		if math.Abs(spread) > s.config.ExitThreshold {
			return nil
		}
		for _, leg := range legs {
			if leg.Broker.IsInPosition() {
				leg.State.ScheduleClose()
			}
		}
		s.logSignal(ctx, legs[0], "spread reverted", candles[0], map[string]interface{}{"spread": spread})
		return nil
	}

	switch {
	case spread > s.config.EntryThreshold:
		legs[0].State.ScheduleOpen(domain.Short)
		legs[1].State.ScheduleOpen(domain.Long)
	case spread < -s.config.EntryThreshold:
		legs[0].State.ScheduleOpen(domain.Long)
		legs[1].State.ScheduleOpen(domain.Short)
	default:
		return nil
	}
	s.logSignal(ctx, legs[0], "spread opened", candles[0], map[string]interface{}{"spread": spread})
	return nil
}
