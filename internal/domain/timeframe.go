package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timeframe is the granularity label of a candle series. The simulation core
// treats it as opaque; adapters translate it into exchange intervals.
type Timeframe string

const (
	OneMinute      Timeframe = "1m"
	FiveMinutes    Timeframe = "5m"
	FifteenMinutes Timeframe = "15m"
	OneHour        Timeframe = "1h"
	FourHours      Timeframe = "4h"
	OneDay         Timeframe = "1d"
	OneWeek        Timeframe = "1w"
)

var timeframeDurations = map[Timeframe]time.Duration{
	OneMinute:      time.Minute,
	FiveMinutes:    5 * time.Minute,
	FifteenMinutes: 15 * time.Minute,
	OneHour:        time.Hour,
	FourHours:      4 * time.Hour,
	OneDay:         24 * time.Hour,
	OneWeek:        7 * 24 * time.Hour,
}

// ErrUnsupportedTimeframe is returned by ParseTimeframe for unknown labels.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// ParseTimeframe normalizes and validates a timeframe label.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, s)
	}
	return tf, nil
}

// Duration returns the length of one candle of this timeframe, or 0 if unknown.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

func (tf Timeframe) String() string {
	return string(tf)
}
