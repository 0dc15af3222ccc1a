// Package risk provides the stop-loss and take-profit calculators used when
// a strategy opens a position.
package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/strategy"
	"candleBacktester/internal/strategy/indicators"
	"candleBacktester/internal/utils"
)

// PercentStops places levels at a fixed fraction of the entry price.
// A non-positive percent disables that level.
type PercentStops struct {
	StopLossPercent   float64 // e.g. 0.02 for 2%
	TakeProfitPercent float64
}

var _ strategy.StopCalculator = PercentStops{}

// CalcStopLoss returns price*(1-pct) for longs and price*(1+pct) for shorts.
func (p PercentStops) CalcStopLoss(price float64, dir domain.Direction) (float64, bool) {
	if p.StopLossPercent <= 0 {
		return 0, false
	}
	return shift(price, -p.StopLossPercent*float64(dir)), true
}

// CalcTakeProfit returns price*(1+pct) for longs and price*(1-pct) for shorts.
func (p PercentStops) CalcTakeProfit(price float64, dir domain.Direction) (float64, bool) {
	if p.TakeProfitPercent <= 0 {
		return 0, false
	}
	return shift(price, p.TakeProfitPercent*float64(dir)), true
}

// shift returns price*(1+pct) computed in decimal, so a level lands exactly
// on the price a candle can print: 100 shifted by 10% is 110, where float
// math gives 110.00000000000001 and a High of 110 would miss the take profit.
func shift(price, pct float64) float64 {
	v, _ := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct))).
		Float64()
	return v
}

// ATRStops places the stop Multiplier ATRs away from the entry and the take
// profit RewardRatio times further. Until enough candles were observed no
// levels are returned.
type ATRStops struct {
	multiplier  float64
	rewardRatio float64
	atr         *indicators.ATR
	history     *utils.Window[domain.Candle]
	current     float64
}

var (
	_ strategy.StopCalculator = (*ATRStops)(nil)
	_ strategy.CandleObserver = (*ATRStops)(nil)
)

// NewATRStops creates ATR based stops. A non-positive rewardRatio disables
// the take profit.
func NewATRStops(period int, multiplier, rewardRatio float64) (*ATRStops, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("ATR multiplier must be positive, got %v", multiplier)
	}
	atr := indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: period}})
	return &ATRStops{
		multiplier:  multiplier,
		rewardRatio: rewardRatio,
		atr:         atr,
		history:     utils.NewWindow[domain.Candle](atr.RequiredDataPoints()),
	}, nil
}

// Observe updates the ATR with a finished candle.
func (a *ATRStops) Observe(ctx context.Context, candle domain.Candle) error {
	a.history.Push(candle)
	if !a.history.Full() {
		return nil
	}
	v, err := a.atr.Calculate(ctx, a.history.Items())
	if err != nil {
		return err
	}
	a.current = v
	return nil
}

// Current returns the latest ATR, zero while warming up.
func (a *ATRStops) Current() float64 {
	return a.current
}

// CalcStopLoss returns the entry minus Multiplier ATRs for longs, plus for shorts.
func (a *ATRStops) CalcStopLoss(price float64, dir domain.Direction) (float64, bool) {
	if a.current <= 0 {
		return 0, false
	}
	return price - float64(dir)*a.multiplier*a.current, true
}

// CalcTakeProfit mirrors the stop distance scaled by the reward ratio.
func (a *ATRStops) CalcTakeProfit(price float64, dir domain.Direction) (float64, bool) {
	if a.current <= 0 || a.rewardRatio <= 0 {
		return 0, false
	}
	return price + float64(dir)*a.multiplier*a.rewardRatio*a.current, true
}
