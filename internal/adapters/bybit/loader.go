package bybit

import (
	"context"
	"fmt"
	"time"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

// KlineLoader pages candles forward in fixed time windows of limit candles,
// so each request fits in one Bybit page.
type KlineLoader struct {
	client    *Client
	symbol    string
	timeframe domain.Timeframe
	cursor    int64
	end       int64
	limit     int
	width     int64
}

var _ ports.ChunkLoader[domain.Candle] = (*KlineLoader)(nil)

// KlineLoader returns a loader over open times in [start, end]. A zero end
// means the current time. Unsupported timeframes fail here rather than on
// the first fetch.
func (c *Client) KlineLoader(symbol string, tf domain.Timeframe, start, end int64, limit int) (*KlineLoader, error) {
	if _, err := Interval(tf); err != nil {
		return nil, err
	}
	if end == 0 {
		end = time.Now().UnixMilli()
	}
	if end < start {
		return nil, fmt.Errorf("bybit loader: end %d before start %d: %w", end, start, ports.ErrConfiguration)
	}
	if limit <= 0 || limit > MaxKlinesLimit {
		limit = MaxKlinesLimit
	}
	return &KlineLoader{
		client:    c,
		symbol:    symbol,
		timeframe: tf,
		cursor:    start,
		end:       end,
		limit:     limit,
		width:     tf.Duration().Milliseconds(),
	}, nil
}

// LoadNextChunk fetches windows until one has data or the range is passed.
// Empty windows (exchange gaps) are skipped.
func (l *KlineLoader) LoadNextChunk(ctx context.Context) (ports.Chunk[domain.Candle], error) {
	for l.cursor <= l.end {
		windowEnd := min(l.cursor+int64(l.limit)*l.width-1, l.end)
		candles, err := l.client.GetKlines(ctx, l.symbol, l.timeframe, l.cursor, windowEnd, l.limit)
		if err != nil {
			return ports.Chunk[domain.Candle]{}, err
		}
		l.cursor = windowEnd + 1
		if len(candles) == 0 {
			continue
		}

		status := ports.ChunkHasMore
		if l.cursor > l.end {
			status = ports.ChunkExhausted
		}
		l.client.logger.Debug(ctx, "Fetched Bybit klines page", map[string]interface{}{
			"symbol": l.symbol, "timeframe": l.timeframe.String(), "count": len(candles), "cursor": l.cursor,
		})
		return ports.Chunk[domain.Candle]{Items: candles, Status: status}, nil
	}
	return ports.Chunk[domain.Candle]{Status: ports.ChunkExhausted}, nil
}
