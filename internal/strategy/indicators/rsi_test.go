package indicators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_Calculate(t *testing.T) {
	config := func(period int) RSIConfig {
		return RSIConfig{IndicatorConfig: IndicatorConfig{Period: period}, Overbought: 70, Oversold: 30}
	}

	tests := []struct {
		name        string
		config      RSIConfig
		closes      []float64
		want        float64
		expectError bool
	}{
		{
			name:   "sufficient data",
			config: config(3),
			closes: []float64{100, 102, 101, 103, 102, 104},
			want:   77.272727,
		},
		{
			name:        "insufficient data",
			config:      config(7),
			closes:      []float64{100, 102, 101, 103, 102, 104},
			expectError: true,
		},
		{name: "all gains", config: config(3), closes: []float64{100, 102, 104, 106}, want: 100},
		{name: "all losses", config: config(3), closes: []float64{106, 104, 102, 100}, want: 0},
		{name: "flat", config: config(3), closes: []float64{100, 100, 100, 100}, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(tt.config)
			value, err := rsi.Calculate(context.Background(), candlesFromCloses(tt.closes...))
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, value, 1e-6)
		})
	}
}

func TestRSI_Thresholds(t *testing.T) {
	rsi := NewRSI(RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Overbought: 70, Oversold: 30})
	assert.True(t, rsi.IsOverbought(75))
	assert.False(t, rsi.IsOverbought(65))
	assert.True(t, rsi.IsOversold(30))
	assert.False(t, rsi.IsOversold(31))
	assert.Equal(t, 15, rsi.RequiredDataPoints())
}
