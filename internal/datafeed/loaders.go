package datafeed

import (
	"context"

	"candleBacktester/internal/ports"
)

// LoaderFunc adapts a function to ports.ChunkLoader.
type LoaderFunc[T any] func(ctx context.Context) (ports.Chunk[T], error)

// LoadNextChunk calls f.
func (f LoaderFunc[T]) LoadNextChunk(ctx context.Context) (ports.Chunk[T], error) {
	return f(ctx)
}

// SliceLoader pages an in-memory slice in chunks of ChunkSize items.
type SliceLoader[T any] struct {
	items     []T
	chunkSize int
	offset    int
}

// NewSliceLoader creates a loader over items. chunkSize <= 0 returns
// everything in one chunk.
func NewSliceLoader[T any](items []T, chunkSize int) *SliceLoader[T] {
	if chunkSize <= 0 {
		chunkSize = len(items)
	}
	return &SliceLoader[T]{items: items, chunkSize: chunkSize}
}

// LoadNextChunk returns the next page of the slice.
func (l *SliceLoader[T]) LoadNextChunk(ctx context.Context) (ports.Chunk[T], error) {
	if err := ctx.Err(); err != nil {
		return ports.Chunk[T]{}, err
	}
	end := min(l.offset+l.chunkSize, len(l.items))
	page := l.items[l.offset:end]
	l.offset = end

	status := ports.ChunkHasMore
	if l.offset >= len(l.items) {
		status = ports.ChunkExhausted
	}
	return ports.Chunk[T]{Items: page, Status: status}, nil
}

// Drain calls loader until it reports it is done and returns everything it
// produced. Items loaded before a failure are returned with the error.
func Drain[T any](ctx context.Context, loader ports.ChunkLoader[T]) ([]T, error) {
	var items []T
	for {
		chunk, err := loader.LoadNextChunk(ctx)
		if err != nil {
			return items, err
		}
		items = append(items, chunk.Items...)
		if chunk.Done() {
			return items, nil
		}
	}
}
