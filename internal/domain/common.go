package domain

import "fmt"

// Direction is the side of a simulated position. Its numeric value is used as
// the sign of the relative PnL.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

// String returns the lowercase name of the direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return -d
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"
	CloseReasonTakeProfit CloseReason = "TP"
	CloseReasonStrategy   CloseReason = "Strategy" // scheduled close or direct strategy call
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonUnknown    CloseReason = "Unknown"
)
