package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	coresys "github.com/funnisimo/gw-ecs/internal/core/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDemoRuns(t *testing.T) {
	w := ecs.NewWorld()
	rng := rand.New(rand.NewSource(1))
	require.NoError(t, setupDemo(w, rng, zap.NewNop()))
	spawnActors(w, rng, 4)

	order := ecs.MustUnique[TurnOrder](w)
	assert.Equal(t, 4, order.Len())

	r := coresys.NewRunner(w, ecs.DefaultSet, turnSet)
	for i := 0; i < 50; i++ {
		require.NoError(t, r.Tick(200*time.Millisecond))
	}
	assert.Equal(t, 50, order.Turns)
	assert.Zero(t, ecs.MustComponents[Acting](w).Len(), "every turn is resolved")

	// Every living actor is scheduled exactly once; the dead are not.
	assert.Equal(t, ecs.MustComponents[Actor](w).Len(), order.Len())
	for order.Len() > 0 {
		e, _ := order.Pop()
		assert.True(t, w.IsAlive(e))
	}
}

func TestTurnDelay(t *testing.T) {
	assert.Equal(t, int64(100), turnDelay(10))
	assert.Equal(t, int64(1000), turnDelay(0))
	assert.Less(t, turnDelay(14), turnDelay(5))
}
