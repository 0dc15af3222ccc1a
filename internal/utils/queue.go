package utils

type queueNode[T any] struct {
	value T
	next  *queueNode[T]
}

// Queue is an unbounded FIFO backed by a singly linked list.
// Push and PopFront are O(1). The zero value is an empty queue.
type Queue[T any] struct {
	head *queueNode[T]
	tail *queueNode[T]
	size int
}

// NewQueue returns a queue holding items in order.
func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	q.PushBulk(items)
	return q
}

// Push appends v to the back of the queue.
func (q *Queue[T]) Push(v T) {
	n := &queueNode[T]{value: v}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size++
}

// PushBulk appends all values preserving their order.
func (q *Queue[T]) PushBulk(values []T) {
	for _, v := range values {
		q.Push(v)
	}
}

// PopFront removes and returns the oldest item. ok is false when the queue is empty.
func (q *Queue[T]) PopFront() (v T, ok bool) {
	if q.head == nil {
		return v, false
	}
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--
	return n.value, true
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (v T, ok bool) {
	if q.head == nil {
		return v, false
	}
	return q.head.value, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return q.size
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return q.head == nil
}
