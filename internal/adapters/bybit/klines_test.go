package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candleBacktester/internal/datafeed"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

const minuteMs = int64(60_000)

// fakeMarket serves one-minute klines at the given minute offsets, newest
// first, the way /v5/market/kline does.
func fakeMarket(t *testing.T, minutes []int64, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		q := r.URL.Query()
		switch q.Get("symbol") {
		case "BAD":
			fmt.Fprint(w, `{"retCode":10001,"retMsg":"params error: symbol invalid","result":{}}`)
			return
		case "BUSY":
			w.WriteHeader(http.StatusTooManyRequests)
			return
		case "DOWN":
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		start, _ := strconv.ParseInt(q.Get("start"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("end"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		var rows []string
		for _, m := range slices.Backward(minutes) {
			open := m * minuteMs
			if open < start || open > end || len(rows) >= limit {
				continue
			}
			p := strconv.FormatInt(100+m, 10)
			rows = append(rows, fmt.Sprintf(`["%d","%s","%s","%s","%s","2.5","250"]`, open, p, p, p, p))
		}
		fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[%s]}}`, strings.Join(rows, ","))
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url, Logger: ports.NopLogger{}})
	require.NoError(t, err)
	return c
}

func drainOpens(t *testing.T, feed *datafeed.Feed[domain.Candle]) []int64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, feed.Preload(ctx))
	var opens []int64
	for !feed.IsLast() {
		candle, err := feed.Next(ctx)
		require.NoError(t, err)
		opens = append(opens, candle.OpenTime/minuteMs)
	}
	return opens
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ports.ErrConfiguration)

	_, err = New(Config{Logger: ports.NopLogger{}, Category: "option"})
	assert.ErrorIs(t, err, ports.ErrConfiguration)

	c, err := New(Config{Logger: ports.NopLogger{}})
	require.NoError(t, err)
	assert.Equal(t, MainnetURL, c.baseURL)
	assert.Equal(t, "linear", c.category)
}

func TestInterval(t *testing.T) {
	tests := []struct {
		tf   domain.Timeframe
		want string
	}{
		{domain.OneMinute, "1"},
		{domain.FiveMinutes, "5"},
		{domain.FifteenMinutes, "15"},
		{domain.OneHour, "60"},
		{domain.FourHours, "240"},
		{domain.OneDay, "D"},
		{domain.OneWeek, "W"},
	}
	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			got, err := Interval(tt.tf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Interval(domain.Timeframe("3m"))
	assert.ErrorIs(t, err, ports.ErrConfiguration)
	assert.ErrorIs(t, err, domain.ErrUnsupportedTimeframe)
}

func TestGetKlines_OldestFirst(t *testing.T) {
	srv := fakeMarket(t, []int64{0, 1, 2, 3}, nil)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	candles, err := c.GetKlines(context.Background(), "BTCUSDT", domain.OneMinute, minuteMs, 3*minuteMs, 10)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, domain.Candle{OpenTime: minuteMs, CloseTime: 2*minuteMs - 1, Open: 101, High: 101, Low: 101, Close: 101, Volume: 2.5}, candles[0])
	assert.Equal(t, 3*minuteMs, candles[2].OpenTime)
}

func TestGetKlines_Errors(t *testing.T) {
	srv := fakeMarket(t, nil, nil)
	defer srv.Close()
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	tests := []struct {
		symbol string
		want   error
	}{
		{"BAD", ports.ErrExchangeUnavailable},
		{"BUSY", ports.ErrRateLimited},
		{"DOWN", ports.ErrExchangeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			_, err := c.GetKlines(ctx, tt.symbol, domain.OneMinute, 0, minuteMs, 10)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	dead := newTestClient(t, "http://127.0.0.1:1")
	_, err := dead.GetKlines(ctx, "BTCUSDT", domain.OneMinute, 0, minuteMs, 10)
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
}

func TestKlineLoader_PagesWindows(t *testing.T) {
	var calls int32
	srv := fakeMarket(t, []int64{0, 1, 2, 3, 4}, &calls)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	loader, err := c.KlineLoader("BTCUSDT", domain.OneMinute, 0, 5*minuteMs-1, 2)
	require.NoError(t, err)
	feed := datafeed.New[domain.Candle]("BTCUSDT", domain.OneMinute, loader)

	assert.Equal(t, []int64{0, 1, 2, 3, 4}, drainOpens(t, feed))
	assert.True(t, feed.Exhausted())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestKlineLoader_SkipsEmptyWindows(t *testing.T) {
	var calls int32
	srv := fakeMarket(t, []int64{0, 5}, &calls)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	loader, err := c.KlineLoader("BTCUSDT", domain.OneMinute, 0, 6*minuteMs-1, 2)
	require.NoError(t, err)
	feed := datafeed.New[domain.Candle]("BTCUSDT", domain.OneMinute, loader)

	assert.Equal(t, []int64{0, 5}, drainOpens(t, feed))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestKlineLoader_EmptyRange(t *testing.T) {
	srv := fakeMarket(t, nil, nil)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	loader, err := c.KlineLoader("BTCUSDT", domain.OneMinute, 0, 3*minuteMs, 2)
	require.NoError(t, err)
	chunk, err := loader.LoadNextChunk(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chunk.Items)
	assert.True(t, chunk.Done())
}

func TestKlineLoader_Validation(t *testing.T) {
	c := newTestClient(t, "http://localhost")

	_, err := c.KlineLoader("BTCUSDT", domain.Timeframe("2h"), 0, 0, 10)
	assert.ErrorIs(t, err, ports.ErrConfiguration)

	_, err = c.KlineLoader("BTCUSDT", domain.OneMinute, 10, 5, 10)
	assert.ErrorIs(t, err, ports.ErrConfiguration)

	loader, err := c.KlineLoader("BTCUSDT", domain.OneMinute, 0, minuteMs, 5000)
	require.NoError(t, err)
	assert.Equal(t, MaxKlinesLimit, loader.limit)
}
