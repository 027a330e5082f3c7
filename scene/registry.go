// Package scene owns the particle systems of a simulation and drives their
// groups frame by frame.
package scene

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/components"
	"github.com/pthm-cable/pflow/group"
	"github.com/pthm-cable/pflow/node"
)

// groupKey identifies the group running one list for one system.
type groupKey struct {
	system uuid.UUID
	list   node.Handle
}

// Registry holds particle systems as ECS entities and their groups in an
// arena with stable integer ids.
type Registry struct {
	world *ecs.World
	graph *action.Graph

	systemMapper *ecs.Map3[components.System, components.Emitter, components.LOD]
	systemFilter *ecs.Filter3[components.System, components.Emitter, components.LOD]

	sysMap *ecs.Map1[components.System]
	emMap  *ecs.Map1[components.Emitter]
	lodMap *ecs.Map1[components.LOD]

	groups  map[int]*group.Group
	byKey   map[groupKey]int
	owner   map[int]ecs.Entity
	nextID  int
	systems int

	// names from the scene file
	lists   map[string]node.Handle
	actions map[string]node.Handle
	byName  map[string]ecs.Entity
}

// NewRegistry creates an empty registry over graph.
func NewRegistry(graph *action.Graph) *Registry {
	world := ecs.NewWorld()
	return &Registry{
		world:        world,
		graph:        graph,
		systemMapper: ecs.NewMap3[components.System, components.Emitter, components.LOD](world),
		systemFilter: ecs.NewFilter3[components.System, components.Emitter, components.LOD](world),
		sysMap:       ecs.NewMap1[components.System](world),
		emMap:        ecs.NewMap1[components.Emitter](world),
		lodMap:       ecs.NewMap1[components.LOD](world),
		groups:       make(map[int]*group.Group),
		byKey:        make(map[groupKey]int),
		owner:        make(map[int]ecs.Entity),
		nextID:       1,
		lists:        make(map[string]node.Handle),
		actions:      make(map[string]node.Handle),
		byName:       make(map[string]ecs.Entity),
	}
}

// Graph returns the action graph shared by every system.
func (r *Registry) Graph() *action.Graph { return r.graph }

// AddSystem registers a particle system. Roots must be lists of the graph.
func (r *Registry) AddSystem(sys components.System, em components.Emitter) (ecs.Entity, error) {
	if sys.Ref == nil {
		sys.Ref = action.NewSystemRef(sys.Name)
	}
	for _, h := range sys.Roots {
		n, ok := r.graph.Get(h)
		if !ok || n.Kind != action.KindList {
			return ecs.Entity{}, fmt.Errorf("system %q: root %d is not a list", sys.Name, h)
		}
	}
	if _, dup := r.byName[sys.Name]; dup {
		return ecs.Entity{}, fmt.Errorf("duplicate system %q", sys.Name)
	}
	lod := components.LOD{}
	e := r.systemMapper.NewEntity(&sys, &em, &lod)
	r.byName[sys.Name] = e
	r.systems++
	return e, nil
}

// RemoveSystem deletes a system and every group it owns.
func (r *Registry) RemoveSystem(e ecs.Entity) {
	if !r.world.Alive(e) {
		return
	}
	for id, owner := range r.owner {
		if owner == e {
			r.removeGroup(id)
		}
	}
	sys := r.sysMap.Get(e)
	for _, h := range r.graph.Handles() {
		if n, ok := r.graph.Get(h); ok && n.Streams != nil {
			n.Streams.Forget(sys.Ref.ID)
		}
	}
	delete(r.byName, sys.Name)
	r.world.RemoveEntity(e)
	r.systems--
}

// SystemByName returns the system entity registered under name.
func (r *Registry) SystemByName(name string) (ecs.Entity, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// List returns the handle of a named action list.
func (r *Registry) List(name string) (node.Handle, bool) {
	h, ok := r.lists[name]
	return h, ok
}

// Action returns the handle of a named operator or test.
func (r *Registry) Action(name string) (node.Handle, bool) {
	h, ok := r.actions[name]
	return h, ok
}

// System returns the components of a system entity.
func (r *Registry) System(e ecs.Entity) (*components.System, *components.Emitter, *components.LOD, bool) {
	if !r.world.Alive(e) {
		return nil, nil, nil, false
	}
	return r.sysMap.Get(e), r.emMap.Get(e), r.lodMap.Get(e), true
}

// SystemCount returns the number of registered systems.
func (r *Registry) SystemCount() int { return r.systems }

// systemEntry is a system's components collected outside a query.
type systemEntry struct {
	entity ecs.Entity
	sys    *components.System
	em     *components.Emitter
	lod    *components.LOD
}

// entries collects every system. The pointers stay valid until the next
// structural change of the world.
func (r *Registry) entries() []systemEntry {
	out := make([]systemEntry, 0, r.systems)
	query := r.systemFilter.Query()
	for query.Next() {
		sys, em, lod := query.Get()
		out = append(out, systemEntry{entity: query.Entity(), sys: sys, em: em, lod: lod})
	}
	return out
}

// entry returns the components of one system, or nil.
func (r *Registry) entry(e ecs.Entity) *systemEntry {
	sys, em, lod, ok := r.System(e)
	if !ok {
		return nil
	}
	return &systemEntry{entity: e, sys: sys, em: em, lod: lod}
}

// Systems returns every system entity.
func (r *Registry) Systems() []ecs.Entity {
	es := r.entries()
	out := make([]ecs.Entity, len(es))
	for i, e := range es {
		out[i] = e.entity
	}
	return out
}

// Group returns a group by id.
func (r *Registry) Group(id int) (*group.Group, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// GroupFor returns the group running list for the system.
func (r *Registry) GroupFor(system *action.SystemRef, list node.Handle) (*group.Group, bool) {
	id, ok := r.byKey[groupKey{system.ID, list}]
	if !ok {
		return nil, false
	}
	return r.groups[id], true
}

// Groups returns every group ordered by id.
func (r *Registry) Groups() []*group.Group {
	ids := make([]int, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*group.Group, len(ids))
	for i, id := range ids {
		out[i] = r.groups[id]
	}
	return out
}

// GroupsOf returns the groups of one system ordered by id.
func (r *Registry) GroupsOf(e ecs.Entity) []*group.Group {
	var out []*group.Group
	for _, g := range r.Groups() {
		if r.owner[g.ID] == e {
			out = append(out, g)
		}
	}
	return out
}

func (r *Registry) addGroup(e ecs.Entity, g *group.Group) {
	r.groups[g.ID] = g
	r.byKey[groupKey{g.System.ID, g.List}] = g.ID
	r.owner[g.ID] = e
}

func (r *Registry) removeGroup(id int) {
	g, ok := r.groups[id]
	if !ok {
		return
	}
	delete(r.byKey, groupKey{g.System.ID, g.List})
	delete(r.owner, id)
	delete(r.groups, id)
}

func (r *Registry) allocID() int {
	id := r.nextID
	r.nextID++
	return id
}
