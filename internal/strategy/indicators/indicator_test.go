package indicators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktester/internal/domain"
)

const hourMs = int64(3_600_000)

// candlesFromCloses builds hourly candles with the given closes.
func candlesFromCloses(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		open := int64(i) * hourMs
		out[i] = domain.Candle{OpenTime: open, CloseTime: open + hourMs - 1, Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestCrossover(t *testing.T) {
	fast := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 1}, Type: SimpleMovingAverage})
	slow := NewMovingAverage(MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: SimpleMovingAverage})

	tests := []struct {
		name    string
		closes  []float64
		want    Cross
		wantErr bool
	}{
		{name: "cross up", closes: []float64{10, 10, 10, 9, 12}, want: CrossUp},
		{name: "cross down", closes: []float64{10, 10, 10, 11, 8}, want: CrossDown},
		{name: "no cross", closes: []float64{10, 11, 12, 13, 14}, want: NoCross},
		{name: "not enough data", closes: []float64{10, 11, 12}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Crossover(context.Background(), fast, slow, candlesFromCloses(tt.closes...))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
