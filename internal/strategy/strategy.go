// Package strategy holds the policy machinery shared by all strategies: the
// pending open/close state, stop-loss/take-profit checks and the pre-update
// protocol run before every candle.
package strategy

import (
	"context"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

// Env is what a strategy sees on every update: the broker it trades on, its
// pending instructions and the labels of the series being replayed.
type Env struct {
	Broker    ports.Broker
	State     *State
	Symbol    string
	Timeframe domain.Timeframe
}

// NewEnv creates an Env with an empty State.
func NewEnv(broker ports.Broker, symbol string, timeframe domain.Timeframe) *Env {
	return &Env{Broker: broker, State: &State{}, Symbol: symbol, Timeframe: timeframe}
}

// Strategy decides what to do after each candle. Update may schedule
// instructions on env.State or call env.Broker directly.
type Strategy interface {
	Name() string
	Update(ctx context.Context, candle domain.Candle, env *Env) error
}

// PairStrategy trades two synchronized series at once, one broker per leg.
// candles[i] belongs to legs[i].
type PairStrategy interface {
	Name() string
	UpdatePair(ctx context.Context, candles [2]domain.Candle, legs [2]*Env) error
}

// StopCalculator derives stop-loss and take-profit levels for an entry
// price. ok is false when no level should be set.
type StopCalculator interface {
	CalcStopLoss(price float64, dir domain.Direction) (level float64, ok bool)
	CalcTakeProfit(price float64, dir domain.Direction) (level float64, ok bool)
}

// CandleObserver is implemented by stop calculators that derive their levels
// from market data. Observe runs after the pending instructions of a candle
// were executed, so levels for an open at candle N only see candles before N.
type CandleObserver interface {
	Observe(ctx context.Context, candle domain.Candle) error
}

// NoStops never sets stop levels.
type NoStops struct{}

func (NoStops) CalcStopLoss(float64, domain.Direction) (float64, bool)   { return 0, false }
func (NoStops) CalcTakeProfit(float64, domain.Direction) (float64, bool) { return 0, false }

// StopsFor picks the stop calculator for s: preferred if non-nil, then s
// itself if it implements StopCalculator, else NoStops.
func StopsFor(s any, preferred StopCalculator) StopCalculator {
	if preferred != nil {
		return preferred
	}
	if calc, ok := s.(StopCalculator); ok {
		return calc
	}
	return NoStops{}
}
