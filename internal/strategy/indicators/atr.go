package indicators

import (
	"context"
	"fmt"
	"math"

	"candleBacktester/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator
type ATR struct {
	config ATRConfig
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{config: config}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints is period+1: true range needs the previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.config.Period + 1
}

// Calculate computes the Average True Range value for the given candles
func (a *ATR) Calculate(ctx context.Context, candles []domain.Candle) (float64, error) {
	period := a.config.Period
	if period <= 0 || len(candles) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(candles))
	}

	ranges := make([]float64, len(candles))
	ranges[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		ranges[i] = trueRange(candles[i], candles[i-1].Close)
	}
	return wilderSmooth(ranges, period), nil
}

// trueRange is the greatest of high-low and the gaps from the previous close.
func trueRange(c domain.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}
