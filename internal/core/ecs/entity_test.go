package ecs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPoolRecycling(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	b := p.Create()
	assert.Equal(t, Entity{Index: 0, Generation: 1}, a)
	assert.Equal(t, Entity{Index: 1, Generation: 1}, b)

	require.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "second destroy is a no-op")

	c := p.Create()
	assert.Equal(t, Entity{Index: 0, Generation: 2}, c)
	assert.False(t, p.Alive(a), "stale handle never matches the reused slot")
	assert.True(t, p.Alive(c))
	assert.Equal(t, 2, p.Count())
	assert.Equal(t, 2, p.Len())
}

func TestEntityPoolReusesLowestDeadSlot(t *testing.T) {
	p := NewEntityPool()
	es := make([]Entity, 5)
	for i := range es {
		es[i] = p.Create()
	}
	p.Destroy(es[3])
	p.Destroy(es[1])

	assert.Equal(t, int32(1), p.Create().Index)
	assert.Equal(t, int32(3), p.Create().Index)
	assert.Equal(t, int32(5), p.Create().Index)
}

func TestEntityPoolGenerationsWalk(t *testing.T) {
	p := NewEntityPool()
	for gen := int32(1); gen <= 4; gen++ {
		e := p.Create()
		assert.Equal(t, gen, e.Generation)
		p.Destroy(e)
		_, ok := p.Current(0)
		assert.False(t, ok)
	}
}

func TestEntityZeroAndForeignHandles(t *testing.T) {
	p := NewEntityPool()
	p.Create()
	assert.True(t, Entity{}.IsZero())
	assert.False(t, p.Alive(Entity{}))
	assert.False(t, p.Alive(Entity{Index: 9, Generation: 1}))
	assert.False(t, p.Alive(Entity{Index: -1, Generation: 1}))
	assert.Equal(t, "0#1", Entity{Index: 0, Generation: 1}.String())
}

func TestEntityGenerationsNeverRepeat(t *testing.T) {
	p := NewEntityPool()
	rng := rand.New(rand.NewSource(7))
	var live []Entity
	seen := map[Entity]bool{}
	last := map[int32]int32{}

	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(live))
			require.True(t, p.Destroy(live[j]))
			live = append(live[:j], live[j+1:]...)
			continue
		}
		e := p.Create()
		require.False(t, seen[e], "handle %s issued twice", e)
		require.Greater(t, e.Generation, last[e.Index])
		seen[e] = true
		last[e.Index] = e.Generation
		live = append(live, e)
	}
	assert.Equal(t, len(live), p.Count())
}
