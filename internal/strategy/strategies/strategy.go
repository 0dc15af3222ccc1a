// Package strategies contains the concrete trading policies that can be
// replayed by the mainframe.
package strategies

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/strategy"
)

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	name   string
	logger ports.Logger
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(name string, logger ports.Logger) (*BaseStrategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy %s", name)
	}
	return &BaseStrategy{name: name, logger: logger}, nil
}

// Name returns the name of the strategy
func (b *BaseStrategy) Name() string {
	return b.name
}

// logSignal records a scheduled instruction together with the candle that produced it.
func (b *BaseStrategy) logSignal(ctx context.Context, env *strategy.Env, msg string, candle domain.Candle, fields map[string]interface{}) {
	out := map[string]interface{}{
		"strategy":  b.name,
		"symbol":    env.Symbol,
		"timeframe": env.Timeframe.String(),
		"openTime":  candle.OpenTime,
		"close":     candle.Close,
	}
	for k, v := range fields {
		out[k] = v
	}
	b.logger.Debug(ctx, msg, out)
}
