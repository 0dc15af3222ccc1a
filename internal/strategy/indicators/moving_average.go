package indicators

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA over candle closes.
type MovingAverage struct {
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{config: config}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// RequiredDataPoints returns the configured period.
func (m *MovingAverage) RequiredDataPoints() int {
	return m.config.Period
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, candles []domain.Candle) (float64, error) {
	switch m.config.Type {
	case SimpleMovingAverage:
		return SMA(closes(candles), m.config.Period)
	case ExponentialMovingAverage:
		return EMA(closes(candles), m.config.Period)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// SMA returns the mean of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(values), period)
	}
	total := 0.0
	for _, v := range values[len(values)-period:] {
		total += v
	}
	return total / float64(period), nil
}

// EMA seeds with the SMA of the first period values and smooths the rest
// with multiplier 2/(period+1).
func EMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(values), period)
	}
	ema, err := SMA(values[:period], period)
	if err != nil {
		return 0, err
	}
	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema += (v - ema) * k
	}
	return ema, nil
}
