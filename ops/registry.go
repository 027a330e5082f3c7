// Package ops is the library of operators and tests that scenes are built
// from, together with the registry that creates them by name.
package ops

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/pflow/action"
)

// Info describes an operator or test for scene files and the UI.
type Info struct {
	ID          string // Name used in scene files
	Name        string // Display name
	Description string // What it does
	Category    string // Grouping (e.g., "birth", "motion", "routing")
	Kind        action.Kind

	// New builds the action from its scene parameters. params may be nil.
	New func(params *yaml.Node) (any, error)
}

// Registry holds every known action type.
// This centralizes naming so scene files and perf tracking stay in sync.
type Registry struct {
	infos []Info
	byID  map[string]Info
}

// NewRegistry creates a registry with all built-in actions.
func NewRegistry() *Registry {
	reg := &Registry{
		byID: make(map[string]Info),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds the built-in actions.
// Update this when adding new operators or tests.
func (r *Registry) registerDefaults() {
	// Birth
	r.Register(Info{ID: "birth", Name: "Birth", Description: "Emits particles at a rate over an interval", Category: "birth", Kind: action.KindOperator,
		New: build(func() *Birth { return &Birth{} })})

	// Motion
	r.Register(Info{ID: "position", Name: "Position", Description: "Places new particles around a point", Category: "motion", Kind: action.KindOperator,
		New: build(func() *Position { return &Position{} })})
	r.Register(Info{ID: "speed", Name: "Speed", Description: "Gives new particles a velocity", Category: "motion", Kind: action.KindOperator,
		New: build(func() *Speed { return &Speed{} })})
	r.Register(Info{ID: "force", Name: "Force", Description: "Applies constant acceleration", Category: "motion", Kind: action.KindOperator,
		New: build(func() *Force { return &Force{} })})
	r.Register(Info{ID: "turbulence", Name: "Turbulence", Description: "Adds simplex noise acceleration", Category: "motion", Kind: action.KindOperator,
		New: build(func() *Turbulence { return &Turbulence{Frequency: 1} })})
	r.Register(Info{ID: "spin", Name: "Spin", Description: "Sets angular velocity of new particles", Category: "motion", Kind: action.KindOperator,
		New: build(func() *Spin { return &Spin{} })})

	// Appearance
	r.Register(Info{ID: "scale", Name: "Scale", Description: "Sets one scale for every particle", Category: "appearance", Kind: action.KindOperator,
		New: build(func() *Scale { return &Scale{Value: 1} })})
	r.Register(Info{ID: "shape", Name: "Shape", Description: "Assigns shapes to new particles", Category: "appearance", Kind: action.KindOperator,
		New: build(func() *Shape { return &Shape{} })})

	// Lifecycle
	r.Register(Info{ID: "deleteByAge", Name: "Delete By Age", Description: "Removes particles past their lifespan", Category: "lifecycle", Kind: action.KindOperator,
		New: build(func() *DeleteByAge { return &DeleteByAge{MaxAge: 1} })})
	r.Register(Info{ID: "spawn", Name: "Spawn", Description: "Clones new particles", Category: "lifecycle", Kind: action.KindOperator,
		New: build(func() *Spawn { return &Spawn{Probability: 1} })})

	// Routing tests
	r.Register(Info{ID: "ageTest", Name: "Age Test", Description: "True once a particle reaches an age", Category: "routing", Kind: action.KindTest,
		New: build(func() *AgeTest { return &AgeTest{} })})
	r.Register(Info{ID: "speedTest", Name: "Speed Test", Description: "True once speed exceeds a threshold", Category: "routing", Kind: action.KindTest,
		New: build(func() *SpeedTest { return &SpeedTest{} })})
	r.Register(Info{ID: "collision", Name: "Collision", Description: "True when a particle hits a plane", Category: "routing", Kind: action.KindTest,
		New: build(func() *CollisionTest { return &CollisionTest{} })})
	r.Register(Info{ID: "sendOut", Name: "Send Out", Description: "Routes every particle", Category: "routing", Kind: action.KindTest,
		New: build(func() *SendOut { return &SendOut{} })})
	r.Register(Info{ID: "randomSplit", Name: "Random Split", Description: "Routes a fraction of new particles", Category: "routing", Kind: action.KindTest,
		New: build(func() *RandomSplit { return &RandomSplit{Fraction: 0.5} })})

	// Diagnostics
	r.Register(Info{ID: "stats", Name: "Stats", Description: "Records per-frame particle statistics", Category: "diagnostics", Kind: action.KindOperator,
		New: build(func() *Stats { return NewStats() })})
}

// validator is implemented by actions that check their parameters.
type validator interface {
	validate() error
}

// build returns a factory that decodes params over the defaults from mk.
func build[T any](mk func() *T) func(*yaml.Node) (any, error) {
	return func(params *yaml.Node) (any, error) {
		v := mk()
		if params != nil && params.Kind != 0 {
			if err := params.Decode(v); err != nil {
				return nil, err
			}
		}
		if val, ok := any(v).(validator); ok {
			if err := val.validate(); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
}

// Register adds an action type to the registry.
func (r *Registry) Register(info Info) {
	r.infos = append(r.infos, info)
	r.byID[info.ID] = info
}

// Get returns info by ID.
func (r *Registry) Get(id string) (Info, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for an ID.
// Falls back to the ID itself if not found.
func (r *Registry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// Build creates an action from its registered ID and parameters.
func (r *Registry) Build(id string, params *yaml.Node) (any, action.Kind, error) {
	info, ok := r.byID[id]
	if !ok {
		return nil, 0, fmt.Errorf("ops: unknown action type %q", id)
	}
	v, err := info.New(params)
	if err != nil {
		return nil, 0, fmt.Errorf("ops: %s params: %w", id, err)
	}
	return v, info.Kind, nil
}

// All returns every registered type.
func (r *Registry) All() []Info {
	return r.infos
}

// ByCategory returns types filtered by category.
func (r *Registry) ByCategory(category string) []Info {
	var result []Info
	for _, info := range r.infos {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}

// Categories returns all unique categories.
func (r *Registry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, info := range r.infos {
		if !seen[info.Category] {
			seen[info.Category] = true
			cats = append(cats, info.Category)
		}
	}
	return cats
}

// IDs returns all IDs in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.infos))
	for i, info := range r.infos {
		ids[i] = info.ID
	}
	return ids
}
