package data

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	"github.com/funnisimo/gw-ecs/internal/core/system"
	"gopkg.in/yaml.v3"
)

// SetEntry declares a system set, or extra steps for an existing one.
type SetEntry struct {
	Name        string      `yaml:"name"`
	EntityFirst bool        `yaml:"entity_first"`
	Steps       []StepEntry `yaml:"steps"`
}

// StepEntry declares a step. Place is "", "before:<step>" or "after:<step>".
type StepEntry struct {
	Name  string `yaml:"name"`
	Place string `yaml:"place"`
}

// SystemEntry binds a scripted system to a step address.
type SystemEntry struct {
	Script   string        `yaml:"script"`
	Set      string        `yaml:"set"`  // default set when empty
	Step     string        `yaml:"step"` // "<step>", "pre-<step>" or "post-<step>"
	Every    time.Duration `yaml:"every"`
	After    time.Duration `yaml:"after"`
	CatchUp  bool          `yaml:"catch_up"`
	Disabled bool          `yaml:"disabled"`
}

// Pipeline is a YAML description of a World's set and step layout plus the
// scripted systems placed in it.
type Pipeline struct {
	Sets    []SetEntry    `yaml:"sets"`
	Systems []SystemEntry `yaml:"systems"`
}

// SystemFactory builds a system from a script function name.
type SystemFactory interface {
	System(fn string) (ecs.System, error)
}

// LoadPipeline loads a pipeline layout file.
func LoadPipeline(path string) (*Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	p, err := ParsePipeline(raw)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	return p, nil
}

func ParsePipeline(raw []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pipeline) validate() error {
	var errs []error
	for i, s := range p.Sets {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sets[%d]: missing name", i))
		}
		for j, st := range s.Steps {
			if st.Name == "" {
				errs = append(errs, fmt.Errorf("sets[%d].steps[%d]: missing name", i, j))
			}
		}
	}
	for i, s := range p.Systems {
		if s.Script == "" {
			errs = append(errs, fmt.Errorf("systems[%d]: missing script", i))
		}
		if s.Every != 0 && s.After != 0 {
			errs = append(errs, fmt.Errorf("systems[%d] %s: every and after are exclusive", i, s.Script))
		}
		if s.Every < 0 || s.After < 0 {
			errs = append(errs, fmt.Errorf("systems[%d] %s: negative duration", i, s.Script))
		}
	}
	return errors.Join(errs...)
}

// Apply creates the declared sets and steps on w, then builds every scripted
// system with f and places it. Sets that already exist only gain steps.
func (p *Pipeline) Apply(w *ecs.World, f SystemFactory) error {
	for _, s := range p.Sets {
		if err := applySet(w, s); err != nil {
			return err
		}
	}
	if len(p.Systems) > 0 && f == nil {
		return fmt.Errorf("pipeline declares %d scripted systems but no script engine is loaded", len(p.Systems))
	}
	for _, entry := range p.Systems {
		sys, err := f.System(entry.Script)
		if err != nil {
			return fmt.Errorf("system %s: %w", entry.Script, err)
		}
		switch {
		case entry.Every > 0:
			sys = system.Interval(sys, entry.Every, entry.CatchUp)
		case entry.After > 0:
			sys = system.Delayed(sys, entry.After)
		}
		opts := []ecs.Option{}
		if entry.Set != "" {
			opts = append(opts, ecs.InSet(entry.Set))
		}
		if entry.Step != "" {
			opts = append(opts, ecs.InStep(entry.Step))
		}
		if entry.Disabled {
			opts = append(opts, ecs.Disabled())
		}
		if err := w.AddSystem(sys, opts...); err != nil {
			return err
		}
	}
	return nil
}

func applySet(w *ecs.World, s SetEntry) error {
	set, err := w.SystemSet(s.Name)
	switch {
	case err == nil && set.EntityFirst() != s.EntityFirst:
		return fmt.Errorf("set %s: entity_first is %t on the existing set", s.Name, set.EntityFirst())
	case err == nil:
	case errors.Is(err, ecs.ErrUnknownSet):
		if s.EntityFirst {
			err = w.AddEntitySystemSet(s.Name)
		} else {
			err = w.AddSystemSet(s.Name)
		}
		if err != nil {
			return err
		}
	default:
		return err
	}
	for _, st := range s.Steps {
		opts := []ecs.Option{ecs.InSet(s.Name), ecs.Placement(st.Place)}
		if s.EntityFirst {
			err = w.AddEntityStep(st.Name, opts...)
		} else {
			err = w.AddStep(st.Name, opts...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
