package event

import "iter"

// Queue is a double-buffered, append-only log of posted values. Values are
// addressed by absolute index: the old segment holds [first, first+len(old))
// and the newer segment everything pushed since the last Maintain.
// Readers consume at their own pace and never see indices shift under them.
type Queue[T any] struct {
	old     []T
	cur     []T
	first   int
	next    int
	readers []*Reader[T]
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		cur: make([]T, 0, 16),
	}
}

// Push appends v to the newer segment.
func (q *Queue[T]) Push(v T) {
	q.cur = append(q.cur, v)
	q.next++
}

// First is the absolute index of the oldest retained value.
func (q *Queue[T]) First() int { return q.first }

// Next is the absolute index the next Push will receive.
func (q *Queue[T]) Next() int { return q.next }

// Len is the number of retained values.
func (q *Queue[T]) Len() int { return q.next - q.first }

// Readers is the number of open readers.
func (q *Queue[T]) Readers() int { return len(q.readers) }

// Reader opens a cursor. With fromStart it sees every retained value,
// otherwise only values pushed after this call.
func (q *Queue[T]) Reader(fromStart bool) *Reader[T] {
	r := &Reader[T]{q: q, next: q.next}
	if fromStart {
		r.next = q.first
	}
	q.readers = append(q.readers, r)
	return r
}

// Maintain rotates the buffers. The newer segment becomes the old one when
// every open reader has moved past the current old segment; otherwise the
// newer segment is folded into the old one and nothing is dropped.
func (q *Queue[T]) Maintain() {
	boundary := q.first + len(q.old)
	for _, r := range q.readers {
		if r.next < boundary {
			q.old = append(q.old, q.cur...)
			clear(q.cur)
			q.cur = q.cur[:0]
			return
		}
	}
	q.first = boundary
	clear(q.old)
	q.old, q.cur = q.cur, q.old[:0]
}

func (q *Queue[T]) at(i int) T {
	if off := i - q.first; off < len(q.old) {
		return q.old[off]
	}
	return q.cur[i-q.first-len(q.old)]
}

func (q *Queue[T]) detach(r *Reader[T]) {
	for i, o := range q.readers {
		if o == r {
			q.readers = append(q.readers[:i], q.readers[i+1:]...)
			return
		}
	}
}

// Reader is an independent cursor over a Queue.
type Reader[T any] struct {
	q      *Queue[T]
	next   int
	closed bool
}

// Next returns the next unread value, advancing only on success.
func (r *Reader[T]) Next() (T, bool) {
	if !r.HasMore() {
		var zero T
		return zero, false
	}
	if r.next < r.q.first {
		r.next = r.q.first
	}
	v := r.q.at(r.next)
	r.next++
	return v, true
}

// HasMore reports whether a value is waiting.
func (r *Reader[T]) HasMore() bool {
	return !r.closed && r.next < r.q.next
}

// Position is the absolute index Next will read.
func (r *Reader[T]) Position() int { return r.next }

// Pending is the number of values waiting for this reader.
func (r *Reader[T]) Pending() int {
	if r.closed {
		return 0
	}
	return r.q.next - max(r.next, r.q.first)
}

// Skip jumps past everything currently queued.
func (r *Reader[T]) Skip() {
	r.next = r.q.next
}

// All drains the reader as an iterator.
func (r *Reader[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := r.Next()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Close releases the reader so Maintain no longer retains values for it.
func (r *Reader[T]) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.q.detach(r)
}
