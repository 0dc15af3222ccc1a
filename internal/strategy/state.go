package strategy

import "candleBacktester/internal/domain"

// OpenOrder is a pending instruction to open a position at the next candle's
// open. Explicit levels take precedence over the StopCalculator.
type OpenOrder struct {
	Direction  domain.Direction
	StopLoss   *float64
	TakeProfit *float64
}

// State carries the instructions a strategy scheduled for the next candle.
type State struct {
	OpenOnNext  *OpenOrder
	CloseOnNext bool
}

// ScheduleOpen opens dir at the next candle's open with calculated stops.
func (s *State) ScheduleOpen(dir domain.Direction) {
	s.OpenOnNext = &OpenOrder{Direction: dir}
}

// ScheduleOpenWithStops opens dir at the next candle's open with explicit
// levels. A nil level falls back to the StopCalculator.
func (s *State) ScheduleOpenWithStops(dir domain.Direction, stopLoss, takeProfit *float64) {
	s.OpenOnNext = &OpenOrder{Direction: dir, StopLoss: stopLoss, TakeProfit: takeProfit}
}

// ScheduleClose closes the current position at the next candle's open.
func (s *State) ScheduleClose() {
	s.CloseOnNext = true
}

// Pending reports whether any instruction is scheduled.
func (s *State) Pending() bool {
	return s.OpenOnNext != nil || s.CloseOnNext
}

// Reset drops all pending instructions.
func (s *State) Reset() {
	s.OpenOnNext = nil
	s.CloseOnNext = false
}
