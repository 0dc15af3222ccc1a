package strategies

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/strategy"
	"candleBacktester/internal/strategy/indicators"
	"candleBacktester/internal/utils"
)

// MACrossoverConfig holds configuration for the MA Crossover strategy
type MACrossoverConfig struct {
	FastMAPeriod int                          // Fast MA period (e.g., 9)
	SlowMAPeriod int                          // Slow MA period (e.g., 21)
	MAType       indicators.MovingAverageType // SMA or EMA, SMA when empty
	AllowShort   bool                         // Open shorts on a downward cross instead of only exiting longs

	// Optional RSI entry filter, disabled when RSIPeriod is 0. Longs are not
	// opened while overbought, shorts not while oversold. Exits still happen.
	RSIPeriod     int
	RSIOverbought float64 // e.g., 70.0
	RSIOversold   float64 // e.g., 30.0

	// Stops sets SL/TP levels for entries. Nil means no levels.
	Stops strategy.StopCalculator
}

// MACrossover goes long when the fast MA crosses above the slow MA and exits
// (or reverses into a short) on the opposite cross. Orders are executed on
// the open of the following candle.
type MACrossover struct {
	*BaseStrategy
	config  MACrossoverConfig
	fastMA  *indicators.MovingAverage
	slowMA  *indicators.MovingAverage
	rsi     *indicators.RSI // nil when the filter is off
	history *utils.Window[domain.Candle]
}

var (
	_ strategy.Strategy       = (*MACrossover)(nil)
	_ strategy.StopCalculator = (*MACrossover)(nil)
)

// NewMACrossover creates a new MA Crossover strategy instance
func NewMACrossover(config MACrossoverConfig, logger ports.Logger) (*MACrossover, error) {
	if config.FastMAPeriod <= 0 || config.SlowMAPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if config.FastMAPeriod >= config.SlowMAPeriod {
		return nil, fmt.Errorf("fast MA period must be less than slow MA period")
	}
	if config.MAType == "" {
		config.MAType = indicators.SimpleMovingAverage
	}
	if config.MAType != indicators.SimpleMovingAverage && config.MAType != indicators.ExponentialMovingAverage {
		return nil, fmt.Errorf("unsupported moving average type: %s", config.MAType)
	}
	if config.RSIPeriod < 0 {
		return nil, fmt.Errorf("RSI period cannot be negative")
	}
	if config.RSIPeriod > 0 && (config.RSIOverbought <= config.RSIOversold || config.RSIOverbought > 100 || config.RSIOversold < 0) {
		return nil, fmt.Errorf("invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}
	if config.Stops == nil {
		config.Stops = strategy.NoStops{}
	}

	base, err := NewBaseStrategy("MA Crossover", logger)
	if err != nil {
		return nil, err
	}

	m := &MACrossover{
		BaseStrategy: base,
		config:       config,
		fastMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.FastMAPeriod},
			Type:            config.MAType,
		}),
		slowMA: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.SlowMAPeriod},
			Type:            config.MAType,
		}),
	}
	if config.RSIPeriod > 0 {
		m.rsi = indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: config.RSIPeriod},
			Overbought:      config.RSIOverbought,
			Oversold:        config.RSIOversold,
		})
	}
	m.history = utils.NewWindow[domain.Candle](m.RequiredDataPoints())
	return m, nil
}

// RequiredDataPoints is the slow period plus the previous candle for cross
// detection, or the RSI look-back if longer.
func (m *MACrossover) RequiredDataPoints() int {
	n := m.config.SlowMAPeriod + 1
	if m.rsi != nil {
		n = max(n, m.rsi.RequiredDataPoints())
	}
	return n
}

// Update records the candle and schedules orders on a fresh cross.
func (m *MACrossover) Update(ctx context.Context, candle domain.Candle, env *strategy.Env) error {
	m.history.Push(candle)
	if !m.history.Full() {
		return nil
	}

	cross, err := indicators.Crossover(ctx, m.fastMA, m.slowMA, m.history.Items())
	if err != nil {
		return fmt.Errorf("%s crossover: %w", m.Name(), err)
	}

	var dir domain.Direction
	switch cross {
	case indicators.CrossUp:
		dir = domain.Long
	case indicators.CrossDown:
		dir = domain.Short
	default:
		return nil
	}

	pos := env.Broker.CurrentPosition()
	if pos != nil && pos.Direction == dir {
		return nil
	}

	enter := dir == domain.Long || m.config.AllowShort
	if enter && m.rsi != nil {
		blocked, err := m.rsiBlocks(ctx, dir)
		if err != nil {
			return err
		}
		enter = !blocked
	}

	// a newer signal replaces anything still pending
	env.State.Reset()
	if pos != nil {
		env.State.ScheduleClose()
	}
	if enter {
		env.State.ScheduleOpen(dir)
	}

	m.logSignal(ctx, env, "MA cross", candle, map[string]interface{}{
		"direction":   dir.String(),
		"close_first": pos != nil,
		"open_next":   env.State.OpenOnNext != nil,
	})
	return nil
}

// rsiBlocks reports whether the RSI filter vetoes an entry in dir.
func (m *MACrossover) rsiBlocks(ctx context.Context, dir domain.Direction) (bool, error) {
	value, err := m.rsi.Calculate(ctx, m.history.Items())
	if err != nil {
		return false, fmt.Errorf("%s RSI: %w", m.Name(), err)
	}
	if dir == domain.Long {
		return m.rsi.IsOverbought(value), nil
	}
	return m.rsi.IsOversold(value), nil
}

// CalcStopLoss delegates to the configured stops.
func (m *MACrossover) CalcStopLoss(price float64, dir domain.Direction) (float64, bool) {
	return m.config.Stops.CalcStopLoss(price, dir)
}

// CalcTakeProfit delegates to the configured stops.
func (m *MACrossover) CalcTakeProfit(price float64, dir domain.Direction) (float64, bool) {
	return m.config.Stops.CalcTakeProfit(price, dir)
}
