package strategy

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
)

// CheckStops reports whether candle breaches the stop-loss or take-profit of
// pos. Stop-loss is checked first. The close is priced at the breached level
// and stamped with the candle close time, the worst case for an intra-candle
// touch.
func CheckStops(pos *domain.Position, candle domain.Candle) (domain.CloseRequest, bool) {
	if pos == nil || !pos.IsOpen() {
		return domain.CloseRequest{}, false
	}

	if sl := pos.StopLoss; sl != nil {
		hit := (pos.Direction == domain.Long && candle.Low <= *sl) ||
			(pos.Direction == domain.Short && candle.High >= *sl)
		if hit {
			return domain.CloseRequest{Price: *sl, Time: candle.CloseTime, Reason: domain.CloseReasonStopLoss}, true
		}
	}

	if tp := pos.TakeProfit; tp != nil {
		hit := (pos.Direction == domain.Long && candle.High >= *tp) ||
			(pos.Direction == domain.Short && candle.Low <= *tp)
		if hit {
			return domain.CloseRequest{Price: *tp, Time: candle.CloseTime, Reason: domain.CloseReasonTakeProfit}, true
		}
	}

	return domain.CloseRequest{}, false
}

// OnBeforeUpdate runs the safety checks and executes pending instructions
// for candle, in this order:
//  1. stop-loss / take-profit of the open position (candle close time)
//  2. pending close at the candle open
//  3. pending open at the candle open, with levels from the order or stops
//  4. stops that implement CandleObserver see the candle
//
// Broker errors are returned as is; nothing is retried.
func OnBeforeUpdate(ctx context.Context, env *Env, stops StopCalculator, candle domain.Candle) error {
	if stops == nil {
		stops = NoStops{}
	}

	if req, hit := CheckStops(env.Broker.CurrentPosition(), candle); hit {
		if _, err := env.Broker.ClosePosition(ctx, req); err != nil {
			return fmt.Errorf("%s close on candle %d: %w", req.Reason, candle.OpenTime, err)
		}
	}

	if env.State.CloseOnNext {
		env.State.CloseOnNext = false
		if env.Broker.IsInPosition() {
			req := domain.CloseRequest{Price: candle.Open, Time: candle.OpenTime, Reason: domain.CloseReasonStrategy}
			if _, err := env.Broker.ClosePosition(ctx, req); err != nil {
				return fmt.Errorf("scheduled close on candle %d: %w", candle.OpenTime, err)
			}
		}
	}

	if order := env.State.OpenOnNext; order != nil {
		env.State.OpenOnNext = nil
		req := domain.OpenRequest{
			Direction:  order.Direction,
			Price:      candle.Open,
			Time:       candle.OpenTime,
			Symbol:     env.Symbol,
			Timeframe:  env.Timeframe,
			StopLoss:   order.StopLoss,
			TakeProfit: order.TakeProfit,
		}
		if req.StopLoss == nil {
			if level, ok := stops.CalcStopLoss(candle.Open, order.Direction); ok {
				req.StopLoss = &level
			}
		}
		if req.TakeProfit == nil {
			if level, ok := stops.CalcTakeProfit(candle.Open, order.Direction); ok {
				req.TakeProfit = &level
			}
		}
		if _, err := env.Broker.OpenPosition(ctx, req); err != nil {
			return fmt.Errorf("scheduled open on candle %d: %w", candle.OpenTime, err)
		}
	}

	if obs, ok := stops.(CandleObserver); ok {
		if err := obs.Observe(ctx, candle); err != nil {
			return fmt.Errorf("stops observe candle %d: %w", candle.OpenTime, err)
		}
	}

	return nil
}
