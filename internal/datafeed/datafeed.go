// Package datafeed provides a lazily refilled iterator over candles (or any
// other item type) backed by an external chunk loader.
package datafeed

import (
	"context"
	"fmt"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
	"candleBacktester/internal/utils"
)

// Feed buffers items pulled from a ChunkLoader and hands them out one at a
// time. It is not safe for concurrent use; a backtest run owns its feeds.
type Feed[T any] struct {
	symbol    string
	timeframe domain.Timeframe
	loader    ports.ChunkLoader[T]
	buf       *utils.Queue[T]
	exhausted bool
	fetches   int
}

// New creates a feed seeded with initial items. A nil loader behaves as an
// already exhausted source.
func New[T any](symbol string, timeframe domain.Timeframe, loader ports.ChunkLoader[T], initial ...T) *Feed[T] {
	return &Feed[T]{
		symbol:    symbol,
		timeframe: timeframe,
		loader:    loader,
		buf:       utils.NewQueue(initial...),
		exhausted: loader == nil,
	}
}

// Symbol returns the symbol label of the feed.
func (f *Feed[T]) Symbol() string { return f.symbol }

// Timeframe returns the timeframe label of the feed.
func (f *Feed[T]) Timeframe() domain.Timeframe { return f.timeframe }

// Preload fetches the first chunk. It must be called once before iteration,
// otherwise an unseeded feed looks exhausted.
func (f *Feed[T]) Preload(ctx context.Context) error {
	return f.fetch(ctx)
}

// Next pops the front item. When that empties the buffer the next chunk is
// fetched before returning, so it is available to the following call.
// Returns ErrFeedEmpty if there is nothing to pop.
func (f *Feed[T]) Next(ctx context.Context) (T, error) {
	item, ok := f.buf.PopFront()
	if !ok {
		return item, fmt.Errorf("%s %s: %w", f.symbol, f.timeframe, ports.ErrFeedEmpty)
	}
	if f.buf.IsEmpty() {
		if err := f.fetch(ctx); err != nil {
			return item, err
		}
	}
	return item, nil
}

// IsLast reports whether the buffer is currently empty. It says nothing about
// whether the loader could still produce data; see Exhausted.
func (f *Feed[T]) IsLast() bool {
	return f.buf.IsEmpty()
}

// Exhausted reports whether the loader signalled that no more data exists.
func (f *Feed[T]) Exhausted() bool {
	return f.exhausted
}

// Len returns the number of buffered items.
func (f *Feed[T]) Len() int {
	return f.buf.Len()
}

// Fetches returns how many times the loader has been called.
func (f *Feed[T]) Fetches() int {
	return f.fetches
}

func (f *Feed[T]) fetch(ctx context.Context) error {
	if f.exhausted {
		return nil
	}
	f.fetches++
	chunk, err := f.loader.LoadNextChunk(ctx)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", f.symbol, f.timeframe, ports.ErrSourceFetch, err)
	}
	f.buf.PushBulk(chunk.Items)
	if chunk.Done() {
		f.exhausted = true
	}
	return nil
}
