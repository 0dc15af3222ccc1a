package ports

import (
	"context"

	"candleBacktester/internal/domain"
)

// Broker owns simulated trading state: at most one open position and the
// append-only history of closed ones.
type Broker interface {
	// OpenPosition opens a new position. Returns ErrAlreadyInPosition if one is open.
	OpenPosition(ctx context.Context, req domain.OpenRequest) (*domain.Position, error)
	// ClosePosition closes the current position. Returns ErrNoOpenPosition if flat.
	ClosePosition(ctx context.Context, req domain.CloseRequest) (*domain.Position, error)
	// IsInPosition reports whether a position is currently open.
	IsInPosition() bool
	// CurrentPosition returns the open position or nil.
	CurrentPosition() *domain.Position
}
