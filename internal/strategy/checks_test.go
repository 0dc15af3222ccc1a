package strategy

import (
	"context"
	"testing"

	"candleBacktester/internal/broker"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStops struct {
	sl, tp float64
}

func (f fixedStops) CalcStopLoss(price float64, dir domain.Direction) (float64, bool) {
	return price - float64(dir)*f.sl, true
}

func (f fixedStops) CalcTakeProfit(price float64, dir domain.Direction) (float64, bool) {
	return price + float64(dir)*f.tp, true
}

func candle(openTime int64, open, high, low, close float64) domain.Candle {
	return domain.Candle{OpenTime: openTime, CloseTime: openTime + 59_999, Open: open, High: high, Low: low, Close: close}
}

func TestCheckStops(t *testing.T) {
	long := &domain.Position{Direction: domain.Long, OpenPrice: 100, StopLoss: domain.Float(95), TakeProfit: domain.Float(110)}
	short := &domain.Position{Direction: domain.Short, OpenPrice: 100, StopLoss: domain.Float(105), TakeProfit: domain.Float(90)}
	bare := &domain.Position{Direction: domain.Long, OpenPrice: 100}

	tests := []struct {
		name       string
		pos        *domain.Position
		candle     domain.Candle
		wantHit    bool
		wantPrice  float64
		wantReason domain.CloseReason
	}{
		{name: "nil position", pos: nil, candle: candle(0, 100, 200, 1, 100)},
		{name: "no levels", pos: bare, candle: candle(0, 100, 200, 1, 100)},
		{name: "long inside range", pos: long, candle: candle(0, 100, 109, 96, 100)},
		{name: "long sl touched exactly", pos: long, candle: candle(0, 100, 101, 95, 97), wantHit: true, wantPrice: 95, wantReason: domain.CloseReasonStopLoss},
		{name: "long tp", pos: long, candle: candle(0, 100, 111, 99, 108), wantHit: true, wantPrice: 110, wantReason: domain.CloseReasonTakeProfit},
		{name: "long both breached prefers sl", pos: long, candle: candle(0, 100, 120, 80, 100), wantHit: true, wantPrice: 95, wantReason: domain.CloseReasonStopLoss},
		{name: "short sl", pos: short, candle: candle(0, 100, 105, 99, 104), wantHit: true, wantPrice: 105, wantReason: domain.CloseReasonStopLoss},
		{name: "short tp", pos: short, candle: candle(0, 100, 101, 90, 92), wantHit: true, wantPrice: 90, wantReason: domain.CloseReasonTakeProfit},
		{name: "short inside range", pos: short, candle: candle(0, 100, 104, 91, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, hit := CheckStops(tt.pos, tt.candle)
			assert.Equal(t, tt.wantHit, hit)
			if !tt.wantHit {
				return
			}
			assert.Equal(t, tt.wantPrice, req.Price)
			assert.Equal(t, tt.candle.CloseTime, req.Time)
			assert.Equal(t, tt.wantReason, req.Reason)
		})
	}
}

func TestOnBeforeUpdate_StopLossBeforePendingInstructions(t *testing.T) {
	ctx := context.Background()
	b := broker.NewMemoryBroker(nil)
	env := NewEnv(b, "BTCUSDT", domain.OneMinute)

	_, err := b.OpenPosition(ctx, domain.OpenRequest{
		Direction: domain.Long, Price: 100, Time: 0, Symbol: "BTCUSDT", StopLoss: domain.Float(95),
	})
	require.NoError(t, err)

	env.State.ScheduleClose()
	env.State.ScheduleOpen(domain.Short)

	c := candle(60_000, 98, 99, 94, 96)
	require.NoError(t, OnBeforeUpdate(ctx, env, NoStops{}, c))

	closed := b.ClosedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, 95.0, *closed[0].ClosePrice)
	assert.Equal(t, c.CloseTime, *closed[0].CloseTime)
	assert.Equal(t, domain.CloseReasonStopLoss, closed[0].CloseReason)

	// the scheduled close found no position; the scheduled open ran at the candle open
	cur := b.CurrentPosition()
	require.NotNil(t, cur)
	assert.Equal(t, domain.Short, cur.Direction)
	assert.Equal(t, 98.0, cur.OpenPrice)
	assert.Equal(t, c.OpenTime, cur.OpenTime)
	assert.False(t, env.State.Pending())
}

func TestOnBeforeUpdate_CloseThenReopenSameCandle(t *testing.T) {
	ctx := context.Background()
	b := broker.NewMemoryBroker(nil)
	env := NewEnv(b, "ETHUSDT", domain.OneHour)

	_, err := b.OpenPosition(ctx, domain.OpenRequest{Direction: domain.Long, Price: 100, Time: 0})
	require.NoError(t, err)

	env.State.ScheduleClose()
	env.State.ScheduleOpen(domain.Short)

	c := candle(3_600_000, 102, 103, 101, 102.5)
	require.NoError(t, OnBeforeUpdate(ctx, env, fixedStops{sl: 2, tp: 4}, c))

	closed := b.ClosedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, 102.0, *closed[0].ClosePrice)
	assert.Equal(t, c.OpenTime, *closed[0].CloseTime)
	assert.Equal(t, domain.CloseReasonStrategy, closed[0].CloseReason)

	cur := b.CurrentPosition()
	require.NotNil(t, cur)
	assert.Equal(t, "ETHUSDT", cur.Symbol)
	assert.Equal(t, domain.OneHour, cur.Timeframe)
	require.NotNil(t, cur.StopLoss)
	require.NotNil(t, cur.TakeProfit)
	assert.Equal(t, 104.0, *cur.StopLoss)
	assert.Equal(t, 98.0, *cur.TakeProfit)
}

func TestOnBeforeUpdate_ExplicitStopsWin(t *testing.T) {
	ctx := context.Background()
	b := broker.NewMemoryBroker(nil)
	env := NewEnv(b, "ETHUSDT", domain.OneHour)

	env.State.ScheduleOpenWithStops(domain.Long, domain.Float(90), nil)
	require.NoError(t, OnBeforeUpdate(ctx, env, fixedStops{sl: 1, tp: 5}, candle(0, 100, 101, 99, 100)))

	cur := b.CurrentPosition()
	require.NotNil(t, cur)
	assert.Equal(t, 90.0, *cur.StopLoss)
	assert.Equal(t, 105.0, *cur.TakeProfit)
}

func TestOnBeforeUpdate_OpenWhileInPositionFails(t *testing.T) {
	ctx := context.Background()
	b := broker.NewMemoryBroker(nil)
	env := NewEnv(b, "ETHUSDT", domain.OneHour)

	_, err := b.OpenPosition(ctx, domain.OpenRequest{Direction: domain.Long, Price: 100})
	require.NoError(t, err)

	env.State.ScheduleOpen(domain.Long)
	err = OnBeforeUpdate(ctx, env, nil, candle(0, 100, 101, 99, 100))
	assert.ErrorIs(t, err, ports.ErrAlreadyInPosition)
	assert.Nil(t, env.State.OpenOnNext)
}

func TestOnBeforeUpdate_NothingPending(t *testing.T) {
	b := broker.NewMemoryBroker(nil)
	env := NewEnv(b, "ETHUSDT", domain.OneHour)
	env.State.ScheduleClose()

	require.NoError(t, OnBeforeUpdate(context.Background(), env, nil, candle(0, 1, 1, 1, 1)))
	assert.False(t, b.IsInPosition())
	assert.False(t, env.State.CloseOnNext, "a close scheduled while flat is dropped")
}

type stopStrategy struct{ fixedStops }

func (stopStrategy) Name() string { return "stop" }
func (stopStrategy) Update(context.Context, domain.Candle, *Env) error {
	return nil
}

func TestStopsFor(t *testing.T) {
	preferred := fixedStops{sl: 1}
	assert.Equal(t, preferred, StopsFor(stopStrategy{}, preferred))
	assert.Equal(t, stopStrategy{fixedStops{sl: 3}}, StopsFor(stopStrategy{fixedStops{sl: 3}}, nil))
	assert.Equal(t, NoStops{}, StopsFor(struct{}{}, nil))
}
