package indicators

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the latest indicator value for the given candles
	Calculate(ctx context.Context, candles []domain.Candle) (float64, error)

	// RequiredDataPoints returns the minimum number of candles needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// Cross describes how a fast series moved relative to a slow one.
type Cross int

const (
	NoCross   Cross = iota
	CrossUp         // fast moved from <= slow to > slow
	CrossDown       // fast moved from >= slow to < slow
)

// Crossover compares fast and slow on the last two candles.
// It needs one more candle than the larger of the two requirements.
func Crossover(ctx context.Context, fast, slow Indicator, candles []domain.Candle) (Cross, error) {
	need := max(fast.RequiredDataPoints(), slow.RequiredDataPoints()) + 1
	if len(candles) < need {
		return NoCross, fmt.Errorf("not enough data (%d) for %s/%s crossover, need %d", len(candles), fast.Name(), slow.Name(), need)
	}

	prev := candles[:len(candles)-1]
	prevFast, err := fast.Calculate(ctx, prev)
	if err != nil {
		return NoCross, err
	}
	prevSlow, err := slow.Calculate(ctx, prev)
	if err != nil {
		return NoCross, err
	}
	curFast, err := fast.Calculate(ctx, candles)
	if err != nil {
		return NoCross, err
	}
	curSlow, err := slow.Calculate(ctx, candles)
	if err != nil {
		return NoCross, err
	}

	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		return CrossUp, nil
	case prevFast >= prevSlow && curFast < curSlow:
		return CrossDown, nil
	default:
		return NoCross, nil
	}
}

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// wilderSmooth seeds with the mean of the first period values and then applies
// Wilder's smoothing to the rest.
func wilderSmooth(values []float64, period int) float64 {
	avg := 0.0
	for _, v := range values[:period] {
		avg += v
	}
	avg /= float64(period)
	for _, v := range values[period:] {
		avg = (avg*float64(period-1) + v) / float64(period)
	}
	return avg
}
