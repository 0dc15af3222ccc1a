package domain

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV bar. Times are unix milliseconds.
type Candle struct {
	OpenTime  int64   // Start of the interval
	CloseTime int64   // End of the interval
	Open      float64 // Opening price
	High      float64 // Highest price
	Low       float64 // Lowest price
	Close     float64 // Closing price
	Volume    float64 // Traded volume
}

// Validate checks the interval bounds of the candle.
func (c Candle) Validate() error {
	if c.OpenTime >= c.CloseTime {
		return fmt.Errorf("candle open time %d is not before close time %d", c.OpenTime, c.CloseTime)
	}
	return nil
}

// OpenAt returns the open time as time.Time.
func (c Candle) OpenAt() time.Time {
	return time.UnixMilli(c.OpenTime)
}

// CloseAt returns the close time as time.Time.
func (c Candle) CloseAt() time.Time {
	return time.UnixMilli(c.CloseTime)
}
