package ecs

import "reflect"

// store is the type-erased surface every ComponentStore exposes to the
// World, to aspects and to snapshot code.
type store interface {
	Type() reflect.Type
	Has(e Entity) bool
	AddedSince(e Entity, since Tick) bool
	UpdatedSince(e Entity, since Tick) bool
	RemovedSince(e Entity, since Tick) bool
	Record(e Entity) (Record, bool)
	Compact(before Tick) int
	Len() int

	setAny(e Entity, v any)
	valueOf(e Entity) (any, bool)
	drop(e Entity)
	rebase(shift Tick)
}

// TypeOf returns the type token used to key stores, queues and uniques.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
type Registry struct {
	stores []store
	byType map[reflect.Type]store
	byName map[string]store
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]store, 0, 16),
		byType: make(map[reflect.Type]store, 16),
		byName: make(map[string]store, 16),
	}
}

// Register adds a component store to the registry. A second store for the
// same type is ignored and the first one returned.
func (r *Registry) Register(s store) store {
	if prev, ok := r.byType[s.Type()]; ok {
		return prev
	}
	r.stores = append(r.stores, s)
	r.byType[s.Type()] = s
	r.byName[s.Type().String()] = s
	return s
}

func (r *Registry) lookup(t reflect.Type) store {
	return r.byType[t]
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(e Entity) {
	for _, s := range r.stores {
		s.drop(e)
	}
}

// Types lists registered component types in registration order.
func (r *Registry) Types() []reflect.Type {
	types := make([]reflect.Type, len(r.stores))
	for i, s := range r.stores {
		types[i] = s.Type()
	}
	return types
}

// TypeByName resolves a type token from its reflect name, e.g. "game.Position".
func (r *Registry) TypeByName(name string) (reflect.Type, bool) {
	s, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return s.Type(), true
}
