package ecs

import (
	"reflect"
)

// Tick is the World's logical clock. Real ticks start at 1, so a since-tick
// of 0 admits every stamp.
type Tick int32

// NoTick marks a component that has not been removed.
const NoTick Tick = -1

// Record is the change history of one component on one entity.
type Record struct {
	Added   Tick
	Updated Tick
	Removed Tick
}

// Present reports whether the component is currently attached.
func (r Record) Present() bool { return r.Removed < 0 }

type record[T any] struct {
	Record
	value T
}

// Watcher mirrors a component store into something else, e.g. a spatial
// index. Callbacks run synchronously inside Set and Remove.
type Watcher[T any] interface {
	ComponentSet(e Entity, v T)
	ComponentRemoved(e Entity, prior T)
}

// WatchFuncs adapts a pair of closures to Watcher. Either may be nil.
type WatchFuncs[T any] struct {
	OnSet    func(e Entity, v T)
	OnRemove func(e Entity, prior T)
}

func (f WatchFuncs[T]) ComponentSet(e Entity, v T) {
	if f.OnSet != nil {
		f.OnSet(e, v)
	}
}

func (f WatchFuncs[T]) ComponentRemoved(e Entity, prior T) {
	if f.OnRemove != nil {
		f.OnRemove(e, prior)
	}
}

// Watch is the registration handle returned by ComponentStore.Watch.
type Watch struct {
	cancelled bool
}

type watchEntry[T any] struct {
	handle  *Watch
	watcher Watcher[T]
}

// ComponentStore is a generic typed map store holding one versioned record
// per entity. Removal keeps the record so removed-since queries keep working
// until the history is compacted; destroying the entity drops it.
type ComponentStore[T any] struct {
	world     *World
	typ       reflect.Type
	data      map[Entity]*record[T]
	watches   []watchEntry[T]
	notifying int
	tombstone bool
}

func newComponentStore[T any](w *World) *ComponentStore[T] {
	return &ComponentStore[T]{
		world: w,
		typ:   TypeOf[T](),
		data:  make(map[Entity]*record[T], 256),
	}
}

func (s *ComponentStore[T]) Type() reflect.Type { return s.typ }

// Set attaches or replaces the component. A previously absent component is
// stamped added and updated; a present one only updated.
func (s *ComponentStore[T]) Set(e Entity, v T) {
	if !s.world.pool.Alive(e) {
		return
	}
	tick := s.world.tick
	rec, ok := s.data[e]
	if !ok {
		rec = &record[T]{}
		s.data[e] = rec
	}
	if !ok || !rec.Present() {
		rec.Added = tick
		rec.Removed = NoTick
	}
	rec.Updated = tick
	rec.value = v
	s.notifySet(e, v)
}

// Fetch returns a pointer to the stored value without stamping it.
func (s *ComponentStore[T]) Fetch(e Entity) (*T, bool) {
	rec, ok := s.data[e]
	if !ok || !rec.Present() {
		return nil, false
	}
	return &rec.value, true
}

// Update is Fetch for callers that intend to mutate the value in place; it
// stamps the record updated.
func (s *ComponentStore[T]) Update(e Entity) (*T, bool) {
	rec, ok := s.data[e]
	if !ok || !rec.Present() {
		return nil, false
	}
	rec.Updated = s.world.tick
	return &rec.value, true
}

// Remove detaches the component and returns the prior value.
func (s *ComponentStore[T]) Remove(e Entity) (T, bool) {
	var zero T
	rec, ok := s.data[e]
	if !ok || !rec.Present() {
		return zero, false
	}
	prior := rec.value
	rec.value = zero
	rec.Removed = s.world.tick
	s.notifyRemove(e, prior)
	return prior, true
}

func (s *ComponentStore[T]) Has(e Entity) bool {
	rec, ok := s.data[e]
	return ok && rec.Present()
}

func (s *ComponentStore[T]) AddedSince(e Entity, since Tick) bool {
	rec, ok := s.data[e]
	return ok && rec.Present() && rec.Added > since
}

func (s *ComponentStore[T]) UpdatedSince(e Entity, since Tick) bool {
	rec, ok := s.data[e]
	return ok && rec.Present() && rec.Updated > since
}

func (s *ComponentStore[T]) RemovedSince(e Entity, since Tick) bool {
	rec, ok := s.data[e]
	return ok && !rec.Present() && rec.Removed > since
}

// Record returns the change history of the component on e, present or not.
func (s *ComponentStore[T]) Record(e Entity) (Record, bool) {
	rec, ok := s.data[e]
	if !ok {
		return Record{}, false
	}
	return rec.Record, true
}

// Len counts entities that currently have the component.
func (s *ComponentStore[T]) Len() int {
	n := 0
	for _, rec := range s.data {
		if rec.Present() {
			n++
		}
	}
	return n
}

// Each visits present components in no particular order.
func (s *ComponentStore[T]) Each(fn func(Entity, *T)) {
	for e, rec := range s.data {
		if rec.Present() {
			fn(e, &rec.value)
		}
	}
}

// Watch registers w for set/remove notifications.
func (s *ComponentStore[T]) Watch(w Watcher[T]) *Watch {
	h := &Watch{}
	s.watches = append(s.watches, watchEntry[T]{handle: h, watcher: w})
	return h
}

// Unwatch tombstones the registration. It is safe to call from inside a
// callback; the entry is compacted once no notification is in flight.
func (s *ComponentStore[T]) Unwatch(h *Watch) {
	if h == nil || h.cancelled {
		return
	}
	h.cancelled = true
	s.tombstone = true
	s.compactWatches()
}

func (s *ComponentStore[T]) compactWatches() {
	if s.notifying > 0 || !s.tombstone {
		return
	}
	kept := s.watches[:0]
	for _, we := range s.watches {
		if !we.handle.cancelled {
			kept = append(kept, we)
		}
	}
	clear(s.watches[len(kept):])
	s.watches = kept
	s.tombstone = false
}

func (s *ComponentStore[T]) notifySet(e Entity, v T) {
	if len(s.watches) == 0 {
		return
	}
	s.notifying++
	// Watchers added during the callback wait for the next change.
	for _, we := range s.watches[:len(s.watches):len(s.watches)] {
		if !we.handle.cancelled {
			we.watcher.ComponentSet(e, v)
		}
	}
	s.notifying--
	s.compactWatches()
}

func (s *ComponentStore[T]) notifyRemove(e Entity, prior T) {
	if len(s.watches) == 0 {
		return
	}
	s.notifying++
	for _, we := range s.watches[:len(s.watches):len(s.watches)] {
		if !we.handle.cancelled {
			we.watcher.ComponentRemoved(e, prior)
		}
	}
	s.notifying--
	s.compactWatches()
}

// Compact drops removal history stamped at or before tick.
func (s *ComponentStore[T]) Compact(before Tick) int {
	n := 0
	for e, rec := range s.data {
		if !rec.Present() && rec.Removed <= before {
			delete(s.data, e)
			n++
		}
	}
	return n
}

// erased store surface used by World, Aspect and snapshots.

func (s *ComponentStore[T]) setAny(e Entity, v any) {
	s.Set(e, v.(T))
}

func (s *ComponentStore[T]) valueOf(e Entity) (any, bool) {
	rec, ok := s.data[e]
	if !ok || !rec.Present() {
		return nil, false
	}
	return rec.value, true
}

// drop clears e on destroy. Watchers see the removal of present values.
func (s *ComponentStore[T]) drop(e Entity) {
	rec, ok := s.data[e]
	if !ok {
		return
	}
	delete(s.data, e)
	if rec.Present() {
		s.notifyRemove(e, rec.value)
	}
}

func (s *ComponentStore[T]) rebase(shift Tick) {
	for e, rec := range s.data {
		rec.Added = max(rec.Added-shift, 0)
		rec.Updated = max(rec.Updated-shift, 0)
		if rec.Present() {
			continue
		}
		if rec.Removed -= shift; rec.Removed < 0 {
			delete(s.data, e)
		}
	}
}
