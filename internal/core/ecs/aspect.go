package ecs

import "reflect"

// Aspect is an immutable predicate over an entity's components. Every
// builder method returns a new Aspect; clauses are ANDed and a clause kind
// that was never added passes. The zero Aspect matches every live entity.
type Aspect struct {
	with    []reflect.Type
	without []reflect.Type
	oneOf   [][]reflect.Type
	someOf  [][]reflect.Type
	added   [][]reflect.Type
	updated [][]reflect.Type
	removed [][]reflect.Type
}

// NewAspect starts an aspect requiring all of the given types.
func NewAspect(with ...reflect.Type) Aspect {
	return Aspect{}.With(with...)
}

// With requires every listed type.
func (a Aspect) With(types ...reflect.Type) Aspect {
	if len(types) == 0 {
		return a
	}
	a.with = appendTypes(a.with, types)
	return a
}

// Without rejects entities holding any listed type.
func (a Aspect) Without(types ...reflect.Type) Aspect {
	if len(types) == 0 {
		return a
	}
	a.without = appendTypes(a.without, types)
	return a
}

// OneOf adds a group of which exactly one type must be present.
func (a Aspect) OneOf(types ...reflect.Type) Aspect {
	a.oneOf = appendGroup(a.oneOf, types)
	return a
}

// SomeOf adds a group of which at least one type must be present.
func (a Aspect) SomeOf(types ...reflect.Type) Aspect {
	a.someOf = appendGroup(a.someOf, types)
	return a
}

// AddedSince adds a group passing when any listed type was added after the
// since-tick handed to Match.
func (a Aspect) AddedSince(types ...reflect.Type) Aspect {
	a.added = appendGroup(a.added, types)
	return a
}

// UpdatedSince adds a group passing when any listed type was set or updated
// after the since-tick.
func (a Aspect) UpdatedSince(types ...reflect.Type) Aspect {
	a.updated = appendGroup(a.updated, types)
	return a
}

// RemovedSince adds a group passing when any listed type was removed after
// the since-tick.
func (a Aspect) RemovedSince(types ...reflect.Type) Aspect {
	a.removed = appendGroup(a.removed, types)
	return a
}

// Match evaluates the aspect against e's current records.
func (a Aspect) Match(w *World, e Entity, since Tick) bool {
	if !w.pool.Alive(e) {
		return false
	}
	for _, t := range a.with {
		if s := w.registry.lookup(t); s == nil || !s.Has(e) {
			return false
		}
	}
	for _, t := range a.without {
		if s := w.registry.lookup(t); s != nil && s.Has(e) {
			return false
		}
	}
	for _, group := range a.oneOf {
		if countHas(w, e, group) != 1 {
			return false
		}
	}
	for _, group := range a.someOf {
		if countHas(w, e, group) == 0 {
			return false
		}
	}
	for _, group := range a.added {
		if !anyStore(w, group, func(s store) bool { return s.AddedSince(e, since) }) {
			return false
		}
	}
	for _, group := range a.updated {
		if !anyStore(w, group, func(s store) bool { return s.UpdatedSince(e, since) }) {
			return false
		}
	}
	for _, group := range a.removed {
		if !anyStore(w, group, func(s store) bool { return s.RemovedSince(e, since) }) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the aspect has no clauses.
func (a Aspect) IsEmpty() bool {
	return len(a.with) == 0 && len(a.without) == 0 &&
		len(a.oneOf) == 0 && len(a.someOf) == 0 &&
		len(a.added) == 0 && len(a.updated) == 0 && len(a.removed) == 0
}

// Types lists every type referenced by any clause, without duplicates.
func (a Aspect) Types() []reflect.Type {
	seen := make(map[reflect.Type]bool)
	var out []reflect.Type
	add := func(types []reflect.Type) {
		for _, t := range types {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(a.with)
	add(a.without)
	for _, groups := range [][][]reflect.Type{a.oneOf, a.someOf, a.added, a.updated, a.removed} {
		for _, g := range groups {
			add(g)
		}
	}
	return out
}

func countHas(w *World, e Entity, group []reflect.Type) int {
	n := 0
	for _, t := range group {
		if s := w.registry.lookup(t); s != nil && s.Has(e) {
			n++
		}
	}
	return n
}

func anyStore(w *World, group []reflect.Type, fn func(store) bool) bool {
	for _, t := range group {
		if s := w.registry.lookup(t); s != nil && fn(s) {
			return true
		}
	}
	return false
}

// appendTypes copies so that aspects derived from a shared parent never
// write into each other's backing arrays.
func appendTypes(dst, src []reflect.Type) []reflect.Type {
	out := make([]reflect.Type, 0, len(dst)+len(src))
	out = append(out, dst...)
	return append(out, src...)
}

func appendGroup(dst [][]reflect.Type, group []reflect.Type) [][]reflect.Type {
	if len(group) == 0 {
		return dst
	}
	out := make([][]reflect.Type, 0, len(dst)+1)
	out = append(out, dst...)
	return append(out, appendTypes(nil, group))
}
