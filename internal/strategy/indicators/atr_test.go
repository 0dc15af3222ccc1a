package indicators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktester/internal/domain"
)

func TestATR_Calculate(t *testing.T) {
	candles := []domain.Candle{
		{High: 12, Low: 10, Close: 11}, // tr 2
		{High: 13, Low: 11, Close: 12}, // tr 2
		{High: 16, Low: 12, Close: 15}, // tr 4
		{High: 15, Low: 11, Close: 12}, // tr 4
	}

	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 2}})
	value, err := atr.Calculate(context.Background(), candles)
	require.NoError(t, err)
	// seed (2+2)/2 = 2, then (2+4)/2 = 3, then (3+4)/2 = 3.5
	assert.InDelta(t, 3.5, value, 1e-9)

	_, err = NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 5}}).Calculate(context.Background(), candles)
	assert.Error(t, err)
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	assert.Equal(t, 5.0, trueRange(domain.Candle{High: 12, Low: 11}, 7))
	assert.Equal(t, 4.0, trueRange(domain.Candle{High: 10, Low: 9}, 13))
}
