package indicators

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index with Wilder's smoothing.
type RSI struct {
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{config: config}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints is period+1: RSI works on price changes.
func (r *RSI) RequiredDataPoints() int {
	return r.config.Period + 1
}

// Calculate computes the latest RSI value.
func (r *RSI) Calculate(ctx context.Context, candles []domain.Candle) (float64, error) {
	period := r.config.Period
	if period <= 0 || len(candles) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(candles), period)
	}

	gains := make([]float64, 0, len(candles)-1)
	losses := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gains = append(gains, max(change, 0))
		losses = append(losses, max(-change, 0))
	}

	avgGain := wilderSmooth(gains, period)
	avgLoss := wilderSmooth(losses, period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	return min(max(rsi, 0), 100), nil
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
