// Package collections provides the small generic structures used by the
// packing and unpacking passes.
package collections

// Queue is a FIFO queue that dequeues by advancing a head index and compacts
// once the consumed prefix dominates the backing slice.
type Queue[T any] struct {
	data []T
	head int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{data: make([]T, 0, capacity)}
}

// Enqueue appends v.
func (q *Queue[T]) Enqueue(v T) {
	q.data = append(q.data, v)
}

// Dequeue removes and returns the oldest value.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.head >= len(q.data) {
		return zero, false
	}
	v := q.data[q.head]
	q.data[q.head] = zero
	q.head++
	if q.head > len(q.data)/2 && q.head > 1024 {
		q.compact()
	}
	return v, true
}

// Peek returns the oldest value without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.head >= len(q.data) {
		var zero T
		return zero, false
	}
	return q.data[q.head], true
}

// IsEmpty reports whether the queue holds no values.
func (q *Queue[T]) IsEmpty() bool {
	return q.head >= len(q.data)
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	return len(q.data) - q.head
}

// Clear drops every queued value.
func (q *Queue[T]) Clear() {
	clear(q.data)
	q.data = q.data[:0]
	q.head = 0
}

func (q *Queue[T]) compact() {
	n := copy(q.data, q.data[q.head:])
	clear(q.data[n:])
	q.data = q.data[:n]
	q.head = 0
}
