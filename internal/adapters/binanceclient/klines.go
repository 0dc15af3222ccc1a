package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
)

// MaxKlinesLimit is the largest page the futures klines endpoint serves.
const MaxKlinesLimit = 1500

// GetKlines fetches one page of up to limit candles opening at or after start.
// A zero end means no upper bound.
func (c *Client) GetKlines(ctx context.Context, symbol string, tf domain.Timeframe, start, end int64, limit int) ([]domain.Candle, error) {
	op := "GetKlines"
	svc := c.futuresClient.NewKlinesService().
		Symbol(symbol).
		Interval(tf.String()).
		StartTime(start).
		Limit(limit)
	if end > 0 {
		svc = svc.EndTime(end)
	}
	binanceKlines, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	candles := make([]domain.Candle, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		candle, err := translateBinanceKline(bk)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// KlineLoader pages futures klines forward in time from a start cursor.
type KlineLoader struct {
	client    *Client
	symbol    string
	timeframe domain.Timeframe
	cursor    int64
	end       int64
	limit     int
}

var _ ports.ChunkLoader[domain.Candle] = (*KlineLoader)(nil)

// KlineLoader returns a loader over [start, end] in pages of limit candles.
// limit is clamped to MaxKlinesLimit; a zero end means up to now.
func (c *Client) KlineLoader(symbol string, tf domain.Timeframe, start, end int64, limit int) *KlineLoader {
	if limit <= 0 || limit > MaxKlinesLimit {
		limit = MaxKlinesLimit
	}
	return &KlineLoader{client: c, symbol: symbol, timeframe: tf, cursor: start, end: end, limit: limit}
}

// LoadNextChunk fetches the next page and advances the cursor to the close
// time of its last candle. A short page or a cursor past end exhausts the loader.
func (l *KlineLoader) LoadNextChunk(ctx context.Context) (ports.Chunk[domain.Candle], error) {
	candles, err := l.client.GetKlines(ctx, l.symbol, l.timeframe, l.cursor, l.end, l.limit)
	if err != nil {
		return ports.Chunk[domain.Candle]{}, err
	}
	if len(candles) == 0 {
		return ports.Chunk[domain.Candle]{Status: ports.ChunkExhausted}, nil
	}

	l.cursor = candles[len(candles)-1].CloseTime
	status := ports.ChunkHasMore
	if len(candles) < l.limit || (l.end > 0 && l.cursor >= l.end) {
		status = ports.ChunkExhausted
	}
	l.client.logger.Debug(ctx, "Fetched klines page", map[string]interface{}{
		"symbol": l.symbol, "timeframe": l.timeframe.String(), "count": len(candles), "cursor": l.cursor,
	})
	return ports.Chunk[domain.Candle]{Items: candles, Status: status}, nil
}

func translateBinanceKline(bk *futures.Kline) (domain.Candle, error) {
	if bk == nil {
		return domain.Candle{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	candle := domain.Candle{
		OpenTime:  bk.OpenTime,
		CloseTime: bk.CloseTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}
	return candle, candle.Validate()
}
