package utils

// Window keeps the last Limit items in insertion order. Strategies use it as
// a bounded look-back over recent candles.
type Window[T any] struct {
	limit int
	items []T
}

// NewWindow creates a window holding at most limit items. A non-positive
// limit is treated as 1.
func NewWindow[T any](limit int) *Window[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Window[T]{limit: limit, items: make([]T, 0, limit)}
}

// Push appends items, dropping the oldest ones beyond the limit.
func (w *Window[T]) Push(items ...T) {
	w.items = append(w.items, items...)
	if over := len(w.items) - w.limit; over > 0 {
		// shift in place so the backing array does not grow without bound
		n := copy(w.items, w.items[over:])
		var zero T
		for i := n; i < len(w.items); i++ {
			w.items[i] = zero
		}
		w.items = w.items[:n]
	}
}

// Items returns the current contents, oldest first. The slice is owned by the
// window and is only valid until the next Push.
func (w *Window[T]) Items() []T {
	return w.items
}

// Len returns the number of held items.
func (w *Window[T]) Len() int {
	return len(w.items)
}

// Full reports whether the window reached its limit.
func (w *Window[T]) Full() bool {
	return len(w.items) == w.limit
}

// Last returns the newest item.
func (w *Window[T]) Last() (v T, ok bool) {
	if len(w.items) == 0 {
		return v, false
	}
	return w.items[len(w.items)-1], true
}
