package ecs

import (
	"fmt"

	"github.com/funnisimo/gw-ecs/internal/core/event"
	"go.uber.org/zap"
)

// RegisterComponent creates the store for T. Registering T again returns the
// existing store.
func RegisterComponent[T any](w *World) *ComponentStore[T] {
	if s := w.registry.lookup(TypeOf[T]()); s != nil {
		return s.(*ComponentStore[T])
	}
	s := newComponentStore[T](w)
	w.registry.Register(s)
	w.log.Debug("component registered", zap.Stringer("type", s.Type()))
	return s
}

// Components returns the store for T.
func Components[T any](w *World) (*ComponentStore[T], error) {
	t := TypeOf[T]()
	s := w.registry.lookup(t)
	if s == nil {
		return nil, fmt.Errorf("component %v: %w", t, ErrUnregisteredComponent)
	}
	return s.(*ComponentStore[T]), nil
}

// MustComponents is Components for wiring that cannot be wrong at run time.
// It panics on an unregistered type.
func MustComponents[T any](w *World) *ComponentStore[T] {
	s, err := Components[T](w)
	if err != nil {
		panic("ecs: " + err.Error())
	}
	return s
}

// The entity helpers below panic on an unregistered component type.

func Set[T any](w *World, e Entity, v T)          { MustComponents[T](w).Set(e, v) }
func Fetch[T any](w *World, e Entity) (*T, bool)  { return MustComponents[T](w).Fetch(e) }
func Update[T any](w *World, e Entity) (*T, bool) { return MustComponents[T](w).Update(e) }
func Remove[T any](w *World, e Entity) (T, bool)  { return MustComponents[T](w).Remove(e) }
func Has[T any](w *World, e Entity) bool          { return MustComponents[T](w).Has(e) }

func IsAddedSince[T any](w *World, e Entity, since Tick) bool {
	return MustComponents[T](w).AddedSince(e, since)
}

func IsUpdatedSince[T any](w *World, e Entity, since Tick) bool {
	return MustComponents[T](w).UpdatedSince(e, since)
}

func IsRemovedSince[T any](w *World, e Entity, since Tick) bool {
	return MustComponents[T](w).RemovedSince(e, since)
}

// RegisterQueue creates the World queue for T. Registering T again returns
// the existing queue.
func RegisterQueue[T any](w *World) *event.Queue[T] {
	t := TypeOf[T]()
	if q, ok := w.queues[t]; ok {
		return q.(*event.Queue[T])
	}
	q := event.NewQueue[T]()
	w.queues[t] = q
	w.queueOrder = append(w.queueOrder, t)
	w.log.Debug("queue registered", zap.Stringer("type", t))
	return q
}

// Queue returns the World queue for T.
func Queue[T any](w *World) (*event.Queue[T], error) {
	t := TypeOf[T]()
	q, ok := w.queues[t]
	if !ok {
		return nil, fmt.Errorf("queue %v: %w", t, ErrUnregisteredQueue)
	}
	return q.(*event.Queue[T]), nil
}

// Push posts v to the World queue for T. It panics on an unregistered type.
func Push[T any](w *World, v T) {
	q, err := Queue[T](w)
	if err != nil {
		panic("ecs: " + err.Error())
	}
	q.Push(v)
}

// NewReader opens a reader on the World queue for T.
func NewReader[T any](w *World, fromStart bool) (*event.Reader[T], error) {
	q, err := Queue[T](w)
	if err != nil {
		return nil, err
	}
	return q.Reader(fromStart), nil
}

// SetUnique stores v as the World's single instance of T, replacing any
// previous one, and returns a pointer systems may mutate in place.
func SetUnique[T any](w *World, v T) *T {
	p := &v
	w.uniques[TypeOf[T]()] = p
	return p
}

// RegisterUnique is SetUnique; registering a unique again replaces its value.
func RegisterUnique[T any](w *World, v T) *T {
	return SetUnique(w, v)
}

func Unique[T any](w *World) (*T, bool) {
	v, ok := w.uniques[TypeOf[T]()]
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// MustUnique panics when no T was set.
func MustUnique[T any](w *World) *T {
	p, ok := Unique[T](w)
	if !ok {
		panic(fmt.Sprintf("ecs: unique %v not set", TypeOf[T]()))
	}
	return p
}

func RemoveUnique[T any](w *World) bool {
	t := TypeOf[T]()
	if _, ok := w.uniques[t]; !ok {
		return false
	}
	delete(w.uniques, t)
	return true
}
