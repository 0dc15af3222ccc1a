package utils

import (
	"path/filepath"
	"strings"
	"testing"

	"candleBacktester/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandlesCSV_WriteRead(t *testing.T) {
	candles := []domain.Candle{
		{OpenTime: 0, CloseTime: 59999, Open: 100, High: 101.5, Low: 99.25, Close: 101, Volume: 12.5},
		{OpenTime: 60000, CloseTime: 119999, Open: 101, High: 102, Low: 100, Close: 100.5, Volume: 3},
	}
	path := filepath.Join(t.TempDir(), "nested", "candles.csv")

	require.NoError(t, WriteCandlesToCSV(candles, path))

	got, err := ReadCandlesFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, candles, got)
}

func TestParseCandlesCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr string
	}{
		{name: "empty file", input: "", wantLen: 0},
		{name: "header only", input: "open_time,close_time,open,high,low,close,volume\n", wantLen: 0},
		{
			name:    "bad price",
			input:   "open_time,close_time,open,high,low,close,volume\n0,1,abc,1,1,1,1\n",
			wantErr: "line 2: parsing open 'abc'",
		},
		{
			name:    "wrong column count",
			input:   "open_time,close_time,open,high,low,close,volume\n0,1,1\n",
			wantErr: "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandlesCSV(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}
