// Package broker implements the simulated broker used by backtests.
package broker

import (
	"context"
	"fmt"
	"sync"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

// MemoryBroker keeps positions in memory. It enforces at most one open
// position and never reopens a closed one.
type MemoryBroker struct {
	logger ports.Logger

	mu        sync.Mutex
	current   *domain.Position
	positions []*domain.Position // every opened position, in open order
	closed    []*domain.Position // closed history, in close order
	counter   int64
}

var _ ports.Broker = (*MemoryBroker)(nil)

// NewMemoryBroker creates an empty broker. A nil logger discards output.
func NewMemoryBroker(logger ports.Logger) *MemoryBroker {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &MemoryBroker{logger: logger}
}

// OpenPosition opens a new position at the requested price and time.
func (b *MemoryBroker) OpenPosition(ctx context.Context, req domain.OpenRequest) (*domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		return nil, fmt.Errorf("open %s %s at %v: %w (id %d)",
			req.Direction, req.Symbol, req.Price, ports.ErrAlreadyInPosition, b.current.ID)
	}
	if req.Direction != domain.Long && req.Direction != domain.Short {
		return nil, fmt.Errorf("open %s: invalid direction %d: %w", req.Symbol, req.Direction, ports.ErrInvalidRequest)
	}

	b.counter++
	pos := &domain.Position{
		ID:         b.counter,
		Symbol:     req.Symbol,
		Timeframe:  req.Timeframe,
		Direction:  req.Direction,
		OpenPrice:  req.Price,
		OpenTime:   req.Time,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}
	b.positions = append(b.positions, pos)
	b.current = pos

	b.logger.Debug(ctx, "Position opened", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"direction":  pos.Direction.String(),
		"price":      pos.OpenPrice,
		"time":       pos.OpenTime,
	})
	return pos, nil
}

// ClosePosition closes the current position. The returned pointer is the
// same Position that was opened, now carrying close fields.
func (b *MemoryBroker) ClosePosition(ctx context.Context, req domain.CloseRequest) (*domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, fmt.Errorf("close at %v: %w", req.Price, ports.ErrNoOpenPosition)
	}

	pos := b.current
	price, closeTime := req.Price, req.Time
	pos.ClosePrice = &price
	pos.CloseTime = &closeTime
	pos.CloseReason = req.Reason
	if pos.CloseReason == "" {
		pos.CloseReason = domain.CloseReasonUnknown
	}
	b.closed = append(b.closed, pos)
	b.current = nil

	b.logger.Debug(ctx, "Position closed", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"price":      price,
		"time":       closeTime,
		"reason":     string(pos.CloseReason),
	})
	return pos, nil
}

// IsInPosition reports whether a position is open.
func (b *MemoryBroker) IsInPosition() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

// CurrentPosition returns the open position or nil.
func (b *MemoryBroker) CurrentPosition() *domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Positions returns all positions ever opened, including the open one.
func (b *MemoryBroker) Positions() []*domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*domain.Position(nil), b.positions...)
}

// ClosedPositions returns the closed-position history in close order.
func (b *MemoryBroker) ClosedPositions() []*domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*domain.Position(nil), b.closed...)
}
