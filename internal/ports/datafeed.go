package ports

import "context"

// ChunkStatus tells the datafeed whether a loader may return more data.
type ChunkStatus int

const (
	// ChunkUnknown means the loader cannot tell. An empty chunk with this
	// status is treated as permanent exhaustion.
	ChunkUnknown ChunkStatus = iota
	// ChunkHasMore means a further call may return items.
	ChunkHasMore
	// ChunkExhausted means the source is permanently done.
	ChunkExhausted
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkHasMore:
		return "has_more"
	case ChunkExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Chunk is one batch returned by a ChunkLoader.
type Chunk[T any] struct {
	Items  []T
	Status ChunkStatus
}

// Done reports whether the loader should not be called again after this chunk.
func (c Chunk[T]) Done() bool {
	return c.Status == ChunkExhausted || (c.Status == ChunkUnknown && len(c.Items) == 0)
}

// ChunkLoader supplies batches of items to a datafeed, advancing its own
// pagination cursor between calls. Retry policy, if any, lives here.
type ChunkLoader[T any] interface {
	LoadNextChunk(ctx context.Context) (Chunk[T], error)
}
