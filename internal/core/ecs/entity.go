package ecs

import "fmt"

// Entity is a generational handle: a slot index plus the generation the slot
// carried when the handle was issued. A positive generation is alive. The
// zero Entity never refers to anything.
type Entity struct {
	Index      int32
	Generation int32
}

func (e Entity) IsZero() bool { return e == Entity{} }

func (e Entity) String() string {
	return fmt.Sprintf("%d#%d", e.Index, e.Generation)
}

// EntityPool allocates entities from a table of slot generations. Destroying
// a slot negates its generation; reusing it flips the sign and adds one, so a
// slot walks 1, -1, 2, -2, 3 ... and stale handles never match a new one.
type EntityPool struct {
	generations []int32
	firstDead   int // no dead slot exists below this index
	alive       int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]int32, 0, 1024),
	}
}

// Create reuses the lowest dead slot, or appends a new one.
func (p *EntityPool) Create() Entity {
	for i := p.firstDead; i < len(p.generations); i++ {
		if gen := p.generations[i]; gen < 0 {
			gen = -gen + 1
			p.generations[i] = gen
			p.firstDead = i + 1
			p.alive++
			return Entity{Index: int32(i), Generation: gen}
		}
	}
	idx := len(p.generations)
	p.generations = append(p.generations, 1)
	p.firstDead = len(p.generations)
	p.alive++
	return Entity{Index: int32(idx), Generation: 1}
}

func (p *EntityPool) Alive(e Entity) bool {
	if e.Generation <= 0 || e.Index < 0 || int(e.Index) >= len(p.generations) {
		return false
	}
	return p.generations[e.Index] == e.Generation
}

// Destroy marks the slot dead. Stale or already destroyed handles are ignored.
func (p *EntityPool) Destroy(e Entity) bool {
	if !p.Alive(e) {
		return false
	}
	p.generations[e.Index] = -e.Generation
	if int(e.Index) < p.firstDead {
		p.firstDead = int(e.Index)
	}
	p.alive--
	return true
}

// Current returns the live handle occupying index, if any.
func (p *EntityPool) Current(index int32) (Entity, bool) {
	if index < 0 || int(index) >= len(p.generations) {
		return Entity{}, false
	}
	gen := p.generations[index]
	if gen <= 0 {
		return Entity{}, false
	}
	return Entity{Index: index, Generation: gen}, true
}

// Len is the number of slots ever allocated, alive or dead.
func (p *EntityPool) Len() int   { return len(p.generations) }
func (p *EntityPool) Count() int { return p.alive }
