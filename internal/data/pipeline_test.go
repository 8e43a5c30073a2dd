package data

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	"github.com/funnisimo/gw-ecs/internal/core/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layout = `
sets:
  - name: default
    steps:
      - name: input
        place: before:update
      - name: render
  - name: turn
    entity_first: true
    steps:
      - name: think
      - name: act
systems:
  - script: poll
    step: input
  - script: regen
    step: post-update
    every: 1s
    catch_up: true
  - script: intro
    after: 3s
  - script: debug
    step: render
    disabled: true
`

type fakeFactory struct {
	runs map[string]int
}

func (f *fakeFactory) System(fn string) (ecs.System, error) {
	if fn == "missing" {
		return nil, fmt.Errorf("function %s not defined", fn)
	}
	return system.Func(fn, func(*ecs.World, time.Duration, time.Duration) error {
		f.runs[fn]++
		return nil
	}), nil
}

func stepNames(t *testing.T, w *ecs.World, set string) []string {
	t.Helper()
	s, err := w.SystemSet(set)
	require.NoError(t, err)
	var out []string
	for _, st := range s.Steps() {
		out = append(out, st.Name())
	}
	return out
}

func TestPipelineApply(t *testing.T) {
	p, err := ParsePipeline([]byte(layout))
	require.NoError(t, err)
	require.Len(t, p.Systems, 4)
	assert.Equal(t, time.Second, p.Systems[1].Every)

	w := ecs.NewWorld()
	f := &fakeFactory{runs: map[string]int{}}
	require.NoError(t, p.Apply(w, f))

	assert.Equal(t, []string{"input", "update", "render"}, stepNames(t, w, ecs.DefaultSet))
	assert.Equal(t, []string{"think", "act"}, stepNames(t, w, "turn"))
	turn, _ := w.SystemSet("turn")
	assert.True(t, turn.EntityFirst())

	r := system.NewRunner(w)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Tick(time.Second))
	}
	assert.Equal(t, 4, f.runs["poll"])
	assert.Equal(t, 4, f.runs["regen"])
	assert.Equal(t, 1, f.runs["intro"])
	assert.Zero(t, f.runs["debug"])
}

func TestPipelineErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "unknown step",
			yaml: "systems:\n  - script: poll\n    step: nope\n",
			want: ecs.ErrUnknownStep,
		},
		{
			name: "unknown set",
			yaml: "systems:\n  - script: poll\n    set: nope\n",
			want: ecs.ErrUnknownSet,
		},
		{
			name: "bad anchor",
			yaml: "sets:\n  - name: default\n    steps:\n      - name: x\n        place: after:nope\n",
			want: ecs.ErrUnknownStep,
		},
		{
			name: "script in entity set",
			yaml: "sets:\n  - name: turn\n    entity_first: true\n    steps:\n      - name: act\nsystems:\n  - script: poll\n    set: turn\n    step: act\n",
			want: ecs.ErrStepKind,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParsePipeline([]byte(tc.yaml))
			require.NoError(t, err)
			err = p.Apply(ecs.NewWorld(), &fakeFactory{runs: map[string]int{}})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPipelineValidation(t *testing.T) {
	for _, src := range []string{
		"sets:\n  - steps: []\n",
		"sets:\n  - name: a\n    steps:\n      - place: after:update\n",
		"systems:\n  - step: update\n",
		"systems:\n  - script: a\n    every: 1s\n    after: 2s\n",
		"systems: [",
	} {
		_, err := ParsePipeline([]byte(src))
		assert.Error(t, err, src)
	}
}

func TestPipelineFactoryErrors(t *testing.T) {
	p, err := ParsePipeline([]byte("systems:\n  - script: missing\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, p.Apply(ecs.NewWorld(), &fakeFactory{}), "system missing")
	assert.Error(t, p.Apply(ecs.NewWorld(), nil))
}

func TestLoadPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(layout), 0o644))
	p, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Len(t, p.Sets, 2)

	_, err = LoadPipeline(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
