package domain

// Position represents a simulated long or short trade. A position without
// close fields is open. Optional values are nil when not set.
type Position struct {
	ID         int64     // Monotonic identifier assigned by the broker
	Symbol     string    // Trading symbol (e.g., "ETHUSDT")
	Timeframe  Timeframe // Timeframe of the series the position was opened on
	Direction  Direction // Long or Short
	OpenPrice  float64   // Entry price
	OpenTime   int64     // Entry time, unix ms
	ClosePrice *float64  // Exit price (nil while open)
	CloseTime  *int64    // Exit time, unix ms (nil while open)
	StopLoss   *float64  // Stop-loss level, if any
	TakeProfit *float64  // Take-profit level, if any

	CloseReason CloseReason
}

// IsOpen reports whether the position has not been closed yet.
func (p *Position) IsOpen() bool {
	return p.ClosePrice == nil && p.CloseTime == nil
}

// IsClosed reports whether both close fields are present.
func (p *Position) IsClosed() bool {
	return p.ClosePrice != nil && p.CloseTime != nil
}

// OpenRequest carries the parameters of a new position.
type OpenRequest struct {
	Direction  Direction
	Price      float64
	Time       int64
	Symbol     string
	Timeframe  Timeframe
	StopLoss   *float64
	TakeProfit *float64
}

// CloseRequest carries the exit parameters of the current position.
type CloseRequest struct {
	Price  float64
	Time   int64
	Reason CloseReason
}

// Float returns a pointer to v. Handy for optional price levels.
func Float(v float64) *float64 {
	return &v
}
