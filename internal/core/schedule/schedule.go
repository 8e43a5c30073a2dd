// Package schedule orders actors for turn-based play. Items are kept in a
// singly-linked list sorted by due time; equal due times pop in the order
// they were added.
package schedule

// Node is one scheduled entry.
type Node[T comparable] struct {
	Item T
	Due  int64
	next *Node[T]
}

// Schedule is a time-ordered turn list. It is not safe for concurrent use.
type Schedule[T comparable] struct {
	head *Node[T]
	size int
	time int64
}

func New[T comparable]() *Schedule[T] {
	return &Schedule[T]{}
}

// Add schedules item to come due delay time units from now. It is placed
// after every entry due at or before the same time.
func (s *Schedule[T]) Add(item T, delay int64) *Node[T] {
	n := &Node[T]{Item: item, Due: s.time + delay}
	s.size++
	if s.head == nil || n.Due < s.head.Due {
		n.next = s.head
		s.head = n
		return n
	}
	cur := s.head
	for cur.next != nil && cur.next.Due <= n.Due {
		cur = cur.next
	}
	n.next = cur.next
	cur.next = n
	return n
}

// Pop removes the next item due and advances the schedule time to its due
// time. Time never moves backwards.
func (s *Schedule[T]) Pop() (T, bool) {
	n := s.head
	if n == nil {
		var zero T
		return zero, false
	}
	s.head = n.next
	s.size--
	s.time = max(s.time, n.Due)
	return n.Item, true
}

// Restore puts item back at the front, ahead of anything already due, for an
// actor that was popped but did not act.
func (s *Schedule[T]) Restore(item T) *Node[T] {
	return s.Add(item, -1)
}

// Remove unlinks the first entry holding item.
func (s *Schedule[T]) Remove(item T) bool {
	var prev *Node[T]
	for cur := s.head; cur != nil; prev, cur = cur, cur.next {
		if cur.Item != item {
			continue
		}
		if prev == nil {
			s.head = cur.next
		} else {
			prev.next = cur.next
		}
		s.size--
		return true
	}
	return false
}

// Peek returns the next entry without removing it.
func (s *Schedule[T]) Peek() (*Node[T], bool) {
	return s.head, s.head != nil
}

func (s *Schedule[T]) Len() int    { return s.size }
func (s *Schedule[T]) Time() int64 { return s.time }

// Clear drops every entry. The schedule time is kept.
func (s *Schedule[T]) Clear() {
	s.head = nil
	s.size = 0
}
