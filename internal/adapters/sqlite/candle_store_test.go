package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktester/internal/datafeed"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

const minuteMs = int64(60_000)

// setupTestStore creates a store in a temporary directory
func setupTestStore(t *testing.T) *CandleStore {
	t.Helper()
	store, err := NewCandleStore(Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "test.db"),
		Logger: ports.NopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func minuteCandles(n int, base float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		open := int64(i) * minuteMs
		p := base + float64(i)
		out[i] = domain.Candle{OpenTime: open, CloseTime: open + minuteMs - 1, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	return out
}

func TestNewCandleStore_RequiresLogger(t *testing.T) {
	_, err := NewCandleStore(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.ErrorIs(t, err, ports.ErrConfiguration)
}

func TestCandleStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	candles := minuteCandles(5, 100)
	require.NoError(t, store.SaveCandles(ctx, "BTCUSDT", domain.OneMinute, candles))
	require.NoError(t, store.SaveCandles(ctx, "ETHUSDT", domain.OneMinute, minuteCandles(2, 10)))

	got, err := store.LoadCandles(ctx, "BTCUSDT", domain.OneMinute, -1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, candles, got)

	n, err := store.CountCandles(ctx, "ETHUSDT", domain.OneMinute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountCandles(ctx, "BTCUSDT", domain.OneHour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCandleStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	candles := minuteCandles(3, 100)
	require.NoError(t, store.SaveCandles(ctx, "BTCUSDT", domain.OneMinute, candles))

	candles[1].Close = 999
	require.NoError(t, store.SaveCandles(ctx, "BTCUSDT", domain.OneMinute, candles[1:2]))

	got, err := store.LoadCandles(ctx, "BTCUSDT", domain.OneMinute, -1, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 999.0, got[1].Close)
}

func TestCandleStore_LoadRange(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.SaveCandles(ctx, "BTCUSDT", domain.OneMinute, minuteCandles(10, 100)))

	got, err := store.LoadCandles(ctx, "BTCUSDT", domain.OneMinute, 2*minuteMs, 5*minuteMs, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3*minuteMs, got[0].OpenTime)
	assert.Equal(t, 5*minuteMs, got[2].OpenTime)

	got, err = store.LoadCandles(ctx, "BTCUSDT", domain.OneMinute, -1, 0, 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestLoader_PagesThroughFeed(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	candles := minuteCandles(7, 100)
	require.NoError(t, store.SaveCandles(ctx, "BTCUSDT", domain.OneMinute, candles))

	loader := store.Loader("BTCUSDT", domain.OneMinute, 1*minuteMs, 0, 3)
	feed := datafeed.New[domain.Candle]("BTCUSDT", domain.OneMinute, loader)
	require.NoError(t, feed.Preload(ctx))

	var got []domain.Candle
	for !feed.IsLast() {
		c, err := feed.Next(ctx)
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, candles[1:], got)
	assert.True(t, feed.Exhausted())
	// pages of 3, 3, then an empty short page
	assert.Equal(t, 3, feed.Fetches())
}

func TestLoader_StopsAtUpperBound(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.SaveCandles(ctx, "BTCUSDT", domain.OneMinute, minuteCandles(7, 100)))

	loader := store.Loader("BTCUSDT", domain.OneMinute, 0, 3*minuteMs, 10)
	chunk, err := loader.LoadNextChunk(ctx)
	require.NoError(t, err)
	assert.Len(t, chunk.Items, 4)
	assert.Equal(t, ports.ChunkExhausted, chunk.Status)
}
