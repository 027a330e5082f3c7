package scene

import (
	"fmt"
	"os"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/components"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ops"
	"github.com/pthm-cable/pflow/ptime"
)

// SceneConfig is a scene file: action lists and the systems that drive them.
type SceneConfig struct {
	Name    string         `yaml:"name"`
	Lists   []ListConfig   `yaml:"lists"`
	Systems []SystemConfig `yaml:"systems"`
}

// ListConfig describes one action list.
type ListConfig struct {
	Name    string         `yaml:"name"`
	Actions []ActionConfig `yaml:"actions"`
}

// ActionConfig describes one operator or test. Ref reuses an action
// declared earlier under that name instead of building a new one.
type ActionConfig struct {
	Type   string    `yaml:"type"`
	Name   string    `yaml:"name"`
	Ref    string    `yaml:"ref"`
	Params yaml.Node `yaml:"params"`

	// To routes particles satisfying a test into another list.
	To     string `yaml:"to"`
	Active *bool  `yaml:"active"` // arrow state, default true

	// From and Until bound when the action runs, in seconds. Until 0 means
	// no end.
	From  float64 `yaml:"from"`
	Until float64 `yaml:"until"`
}

// SystemConfig describes one particle system.
type SystemConfig struct {
	Name         string     `yaml:"name"`
	Roots        []string   `yaml:"roots"`
	Position     [3]float64 `yaml:"position"`
	Importance   float64    `yaml:"importance"`
	MaxParticles int        `yaml:"maxParticles"`
	Start        float64    `yaml:"start"`
	End          float64    `yaml:"end"` // 0 means forever
}

// LoadScene reads a scene file.
func LoadScene(path string) (*SceneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	return ParseScene(data)
}

// ParseScene parses scene YAML.
func ParseScene(data []byte) (*SceneConfig, error) {
	sc := &SceneConfig{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	return sc, nil
}

// Build creates the action graph and a registry holding the scene's
// systems. Actions are made by factory.
func (sc *SceneConfig) Build(factory *ops.Registry, seed uint64) (*Registry, error) {
	graph := action.NewGraph(seed)
	reg := NewRegistry(graph)

	for _, lc := range sc.Lists {
		if lc.Name == "" {
			return nil, fmt.Errorf("scene %q: list without a name", sc.Name)
		}
		if _, dup := reg.lists[lc.Name]; dup {
			return nil, fmt.Errorf("scene %q: duplicate list %q", sc.Name, lc.Name)
		}
		reg.lists[lc.Name] = graph.AddList(lc.Name)
	}

	// Arrows go in after every list is filled so a fertile operator is
	// never refused because its list already receives particles.
	type pendingArrow struct {
		test   node.Handle
		to     string
		active bool
	}
	var arrows []pendingArrow

	for _, lc := range sc.Lists {
		list := reg.lists[lc.Name]
		for i := range lc.Actions {
			ac := &lc.Actions[i]
			h, err := reg.buildAction(factory, ac)
			if err != nil {
				return nil, fmt.Errorf("list %q action %d: %w", lc.Name, i, err)
			}
			if err := graph.Append(list, h); err != nil {
				return nil, fmt.Errorf("list %q action %d: %w", lc.Name, i, err)
			}
			if ac.To != "" {
				active := ac.Active == nil || *ac.Active
				arrows = append(arrows, pendingArrow{test: h, to: ac.To, active: active})
			}
		}
	}

	for _, pa := range arrows {
		to, ok := reg.lists[pa.to]
		if !ok {
			return nil, fmt.Errorf("arrow to unknown list %q", pa.to)
		}
		ah, err := graph.Connect(pa.test, to)
		if err != nil {
			return nil, fmt.Errorf("arrow to %q: %w", pa.to, err)
		}
		if !pa.active {
			if err := graph.SetArrowActive(ah, false); err != nil {
				return nil, err
			}
		}
	}

	for _, syc := range sc.Systems {
		if _, err := reg.addSystemConfig(syc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) buildAction(factory *ops.Registry, ac *ActionConfig) (node.Handle, error) {
	if ac.Ref != "" {
		h, ok := r.actions[ac.Ref]
		if !ok {
			return node.Nil, fmt.Errorf("unknown action ref %q", ac.Ref)
		}
		return h, nil
	}

	params := &ac.Params
	if params.Kind == 0 {
		params = nil
	}
	act, kind, err := factory.Build(ac.Type, params)
	if err != nil {
		return node.Nil, err
	}
	name := ac.Name
	if name == "" {
		name = factory.GetName(ac.Type)
	}

	var h node.Handle
	switch kind {
	case action.KindOperator:
		op, ok := act.(action.Operator)
		if !ok {
			return node.Nil, fmt.Errorf("%s is not an operator", ac.Type)
		}
		h = r.graph.AddOperator(name, op)
	case action.KindTest:
		t, ok := act.(action.Test)
		if !ok {
			return node.Nil, fmt.Errorf("%s is not a test", ac.Type)
		}
		h = r.graph.AddTest(name, t)
	default:
		return node.Nil, fmt.Errorf("%s: unsupported kind %s", ac.Type, kind)
	}

	if ac.From != 0 || ac.Until != 0 {
		iv := ptime.Interval{Start: ptime.FromSeconds(ac.From), End: ptime.Forever.End}
		if ac.Until != 0 {
			iv.End = ptime.FromSeconds(ac.Until)
		}
		if err := r.graph.SetActive(h, iv); err != nil {
			return node.Nil, err
		}
	}
	if ac.Name != "" {
		r.actions[ac.Name] = h
	}
	return h, nil
}

func (r *Registry) addSystemConfig(syc SystemConfig) (ecs.Entity, error) {
	if syc.Name == "" {
		return ecs.Entity{}, fmt.Errorf("system without a name")
	}
	roots := make([]node.Handle, 0, len(syc.Roots))
	for _, name := range syc.Roots {
		h, ok := r.lists[name]
		if !ok {
			return ecs.Entity{}, fmt.Errorf("system %q: unknown root list %q", syc.Name, name)
		}
		roots = append(roots, h)
	}
	life := ptime.Interval{Start: ptime.FromSeconds(syc.Start), End: ptime.Forever.End}
	if syc.End != 0 {
		life.End = ptime.FromSeconds(syc.End)
	}
	sys := components.System{
		Ref:   action.NewSystemRef(syc.Name),
		Name:  syc.Name,
		Roots: roots,
		Life:  life,
	}
	em := components.Emitter{
		Position:     r3.Vec{X: syc.Position[0], Y: syc.Position[1], Z: syc.Position[2]},
		Importance:   syc.Importance,
		MaxParticles: syc.MaxParticles,
	}
	return r.AddSystem(sys, em)
}
