package datafeed

import (
	"context"
	"errors"
	"testing"

	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLoader returns the queued chunks in order, then empty unknown chunks forever.
type scriptedLoader struct {
	chunks [][]string
	calls  int
	err    error
}

func (l *scriptedLoader) LoadNextChunk(ctx context.Context) (ports.Chunk[string], error) {
	l.calls++
	if l.err != nil {
		return ports.Chunk[string]{}, l.err
	}
	if len(l.chunks) == 0 {
		return ports.Chunk[string]{}, nil
	}
	next := l.chunks[0]
	l.chunks = l.chunks[1:]
	return ports.Chunk[string]{Items: next}, nil
}

func drain(t *testing.T, f *Feed[string]) []string {
	t.Helper()
	var got []string
	for !f.IsLast() {
		v, err := f.Next(context.Background())
		require.NoError(t, err)
		got = append(got, v)
	}
	return got
}

func TestFeed_RoundTrip(t *testing.T) {
	loader := &scriptedLoader{chunks: [][]string{{"d", "e"}}}
	feed := New[string]("BTCUSDT", domain.OneDay, loader, "a", "b", "c")

	require.NoError(t, feed.Preload(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, drain(t, feed))

	assert.True(t, feed.IsLast())
	assert.True(t, feed.Exhausted())

	// exhausted loaders are not called again and the feed stays empty
	calls := loader.calls
	require.NoError(t, feed.Preload(context.Background()))
	assert.Equal(t, calls, loader.calls)
	assert.True(t, feed.IsLast())
}

func TestFeed_FetchHappensAfterPop(t *testing.T) {
	loader := &scriptedLoader{chunks: [][]string{{"b"}}}
	feed := New[string]("ETHUSDT", domain.OneHour, loader, "a")

	v, err := feed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, loader.calls)
	assert.False(t, feed.IsLast(), "fetched chunk is available to the following call")

	v, err = feed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.True(t, feed.IsLast())
}

func TestFeed_EmptyWithoutPreload(t *testing.T) {
	feed := New[string]("ETHUSDT", domain.OneHour, &scriptedLoader{chunks: [][]string{{"a"}}})
	assert.True(t, feed.IsLast())

	_, err := feed.Next(context.Background())
	assert.ErrorIs(t, err, ports.ErrFeedEmpty)
}

func TestFeed_LoaderErrorPropagates(t *testing.T) {
	netErr := errors.New("connection reset")

	t.Run("preload", func(t *testing.T) {
		feed := New[string]("ETHUSDT", domain.OneHour, &scriptedLoader{err: netErr})
		err := feed.Preload(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrSourceFetch)
		assert.ErrorIs(t, err, netErr)
	})

	t.Run("next returns popped item with the error", func(t *testing.T) {
		loader := &scriptedLoader{err: netErr}
		feed := New[string]("ETHUSDT", domain.OneHour, loader, "a")
		v, err := feed.Next(context.Background())
		assert.Equal(t, "a", v)
		assert.ErrorIs(t, err, ports.ErrSourceFetch)
		assert.Equal(t, 1, loader.calls, "no retry inside the feed")
	})
}

func TestFeed_ExplicitStatus(t *testing.T) {
	calls := 0
	loader := LoaderFunc[int](func(ctx context.Context) (ports.Chunk[int], error) {
		calls++
		switch calls {
		case 1:
			// empty but more to come: must not be mistaken for exhaustion
			return ports.Chunk[int]{Status: ports.ChunkHasMore}, nil
		case 2:
			return ports.Chunk[int]{Items: []int{1, 2}, Status: ports.ChunkExhausted}, nil
		default:
			t.Fatalf("loader called after exhaustion")
			return ports.Chunk[int]{}, nil
		}
	})
	feed := New[int]("X", domain.OneMinute, loader)

	require.NoError(t, feed.Preload(context.Background()))
	assert.True(t, feed.IsLast())
	assert.False(t, feed.Exhausted())

	require.NoError(t, feed.Preload(context.Background()))
	assert.True(t, feed.Exhausted())

	v, err := feed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = feed.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, feed.IsLast())
	assert.Equal(t, 2, calls)
}

func TestSliceLoader(t *testing.T) {
	loader := NewSliceLoader([]int{1, 2, 3, 4, 5}, 2)
	feed := New[int]("X", domain.OneMinute, loader)
	require.NoError(t, feed.Preload(context.Background()))

	var got []int
	for !feed.IsLast() {
		v, err := feed.Next(context.Background())
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.Equal(t, 3, feed.Fetches())
	assert.True(t, feed.Exhausted())
}

func TestDrain(t *testing.T) {
	items, err := Drain[int](context.Background(), NewSliceLoader([]int{1, 2, 3, 4, 5}, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, items)

	boom := errors.New("boom")
	calls := 0
	failing := LoaderFunc[int](func(ctx context.Context) (ports.Chunk[int], error) {
		calls++
		if calls > 1 {
			return ports.Chunk[int]{}, boom
		}
		return ports.Chunk[int]{Items: []int{7}, Status: ports.ChunkHasMore}, nil
	})
	items, err = Drain[int](context.Background(), failing)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{7}, items)
}
