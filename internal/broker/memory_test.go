package broker

import (
	"context"
	"testing"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openReq(dir domain.Direction, price float64, at int64) domain.OpenRequest {
	return domain.OpenRequest{
		Direction: dir,
		Price:     price,
		Time:      at,
		Symbol:    "BTCUSDT",
		Timeframe: domain.OneHour,
	}
}

func TestMemoryBroker_OpenTwiceFails(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(nil)

	first, err := b.OpenPosition(ctx, openReq(domain.Long, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, first, b.CurrentPosition())

	for i := 0; i < 2; i++ {
		_, err = b.OpenPosition(ctx, openReq(domain.Short, 101, 2))
		assert.ErrorIs(t, err, ports.ErrAlreadyInPosition)
	}
	assert.Equal(t, first, b.CurrentPosition())
	assert.Len(t, b.Positions(), 1)
}

func TestMemoryBroker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(nil)
	assert.False(t, b.IsInPosition())
	assert.Nil(t, b.CurrentPosition())

	pos, err := b.OpenPosition(ctx, domain.OpenRequest{
		Direction:  domain.Short,
		Price:      200,
		Time:       10,
		Symbol:     "ETHUSDT",
		Timeframe:  domain.FiveMinutes,
		StopLoss:   domain.Float(210),
		TakeProfit: domain.Float(180),
	})
	require.NoError(t, err)
	assert.True(t, b.IsInPosition())
	assert.True(t, pos.IsOpen())
	assert.Equal(t, int64(1), pos.ID)

	closed, err := b.ClosePosition(ctx, domain.CloseRequest{Price: 190, Time: 20, Reason: domain.CloseReasonStrategy})
	require.NoError(t, err)
	assert.Same(t, pos, closed)
	assert.False(t, b.IsInPosition())
	require.True(t, closed.IsClosed())
	assert.Equal(t, 190.0, *closed.ClosePrice)
	assert.Equal(t, int64(20), *closed.CloseTime)
	assert.Equal(t, domain.CloseReasonStrategy, closed.CloseReason)

	second, err := b.OpenPosition(ctx, openReq(domain.Long, 195, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID, "ids increase monotonically")

	assert.Equal(t, []*domain.Position{pos}, b.ClosedPositions())
	assert.Equal(t, []*domain.Position{pos, second}, b.Positions())
}

func TestMemoryBroker_CloseWhenFlat(t *testing.T) {
	b := NewMemoryBroker(nil)
	_, err := b.ClosePosition(context.Background(), domain.CloseRequest{Price: 1, Time: 1})
	assert.ErrorIs(t, err, ports.ErrNoOpenPosition)
	assert.Empty(t, b.ClosedPositions())
}

func TestMemoryBroker_InvalidDirection(t *testing.T) {
	b := NewMemoryBroker(nil)
	_, err := b.OpenPosition(context.Background(), openReq(domain.Direction(0), 1, 1))
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	assert.False(t, b.IsInPosition())
}

func TestMemoryBroker_DefaultCloseReason(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(nil)
	_, err := b.OpenPosition(ctx, openReq(domain.Long, 1, 1))
	require.NoError(t, err)
	pos, err := b.ClosePosition(ctx, domain.CloseRequest{Price: 2, Time: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.CloseReasonUnknown, pos.CloseReason)
}
