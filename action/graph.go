package action

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Kind is the node variant.
type Kind uint8

const (
	KindOperator Kind = iota + 1
	KindTest
	KindArrow
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindOperator:
		return "operator"
	case KindTest:
		return "test"
	case KindArrow:
		return "arrow"
	case KindList:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Node is one graph node. Only the field matching Kind is set.
type Node struct {
	Handle node.Handle
	Kind   Kind
	Name   string
	// Active limits when an operator or test runs.
	Active ptime.Interval

	Operator Operator
	Test     Test
	Arrow    *Arrow
	List     *List

	// Streams holds random streams per driving system.
	Streams *Streams
}

// Action returns the operator or test value, or nil for arrows and lists.
func (n *Node) Action() any {
	switch n.Kind {
	case KindOperator:
		return n.Operator
	case KindTest:
		return n.Test
	}
	return nil
}

// Arrow connects a test to the list its satisfied particles move to.
type Arrow struct {
	From   node.Handle
	To     node.Handle
	Active bool
}

// List is an ordered sequence of operators and tests.
type List struct {
	Actions []node.Handle
	// Integrator overrides the group's integrator when set.
	Integrator Integrator
}

// Graph is the arena owning every node. Handles increase monotonically and
// are never reused, so a removed node's handle stays unresolvable. Version
// changes on every edit.
type Graph struct {
	mu      sync.RWMutex
	next    node.Handle
	nodes   map[node.Handle]*Node
	arrows  map[node.Handle]node.Handle // test -> arrow
	version atomic.Uint64
	seed    uint64
}

// NewGraph returns an empty graph. seed feeds every node's random streams.
func NewGraph(seed uint64) *Graph {
	return &Graph{
		nodes:  make(map[node.Handle]*Node),
		arrows: make(map[node.Handle]node.Handle),
		seed:   seed,
	}
}

// Version changes whenever the graph is edited.
func (g *Graph) Version() uint64 {
	return g.version.Load()
}

func (g *Graph) add(n *Node) node.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(n)
}

func (g *Graph) addLocked(n *Node) node.Handle {
	g.next++
	n.Handle = g.next
	if n.Active == (ptime.Interval{}) {
		n.Active = ptime.Forever
	}
	n.Streams = NewStreams(g.seed ^ uint64(n.Handle)*0x9e3779b97f4a7c15)
	g.nodes[n.Handle] = n
	g.version.Add(1)
	return n.Handle
}

// AddOperator adds a free-standing operator node.
func (g *Graph) AddOperator(name string, op Operator) node.Handle {
	return g.add(&Node{Kind: KindOperator, Name: name, Operator: op})
}

// AddTest adds a free-standing test node.
func (g *Graph) AddTest(name string, t Test) node.Handle {
	return g.add(&Node{Kind: KindTest, Name: name, Test: t})
}

// AddList adds an empty action list.
func (g *Graph) AddList(name string) node.Handle {
	return g.add(&Node{Kind: KindList, Name: name, List: &List{}})
}

// Get resolves a handle.
func (g *Graph) Get(h node.Handle) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[h]
	return n, ok
}

// Handles returns every live handle in ascending order.
func (g *Graph) Handles() []node.Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]node.Handle, 0, len(g.nodes))
	for h := range g.nodes {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// SetActive sets the activity interval of an operator or test.
func (g *Graph) SetActive(h node.Handle, iv ptime.Interval) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[h]
	if !ok {
		return fmt.Errorf("set active %d: %w", h, ErrUnknownNode)
	}
	n.Active = iv
	g.version.Add(1)
	return nil
}

func (g *Graph) list(h node.Handle, op string) (*Node, error) {
	n, ok := g.nodes[h]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", op, h, ErrUnknownNode)
	}
	if n.Kind != KindList {
		return nil, &TopologyError{Code: ErrCodeWrongKind, Node: h, Message: op + ": not a list"}
	}
	return n, nil
}

// Append adds an operator or test at the end of a list. A fertile operator
// is only accepted where AcceptFertile allows it.
func (g *Graph) Append(list, act node.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ln, err := g.list(list, "append")
	if err != nil {
		return err
	}
	an, ok := g.nodes[act]
	if !ok {
		return fmt.Errorf("append %d: %w", act, ErrUnknownNode)
	}
	if an.Kind != KindOperator && an.Kind != KindTest {
		return &TopologyError{Code: ErrCodeWrongKind, Node: act, Message: "only operators and tests join lists"}
	}
	if slices.Contains(ln.List.Actions, act) {
		return &TopologyError{Code: ErrCodeDuplicate, Node: act, Message: "already in list"}
	}
	if IsFertile(an.Action()) {
		if err := g.acceptFertile(ln); err != nil {
			return err
		}
	}
	ln.List.Actions = append(ln.List.Actions, act)
	g.version.Add(1)
	return nil
}

// AcceptFertile reports whether a fertile operator may join list: the list
// must not have one already and no arrow may lead into it.
func (g *Graph) AcceptFertile(list node.Handle) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ln, err := g.list(list, "accept fertile")
	if err != nil {
		return false
	}
	return g.acceptFertile(ln) == nil
}

func (g *Graph) acceptFertile(ln *Node) error {
	for _, h := range ln.List.Actions {
		if n, ok := g.nodes[h]; ok && IsFertile(n.Action()) {
			return &TopologyError{Code: ErrCodeSecondFertile, Node: ln.Handle, Message: "list already has a fertile operator"}
		}
	}
	if g.hasInbound(ln.Handle) {
		return &TopologyError{Code: ErrCodeFertileRouted, Node: ln.Handle, Message: "list receives routed particles"}
	}
	return nil
}

func (g *Graph) hasInbound(list node.Handle) bool {
	for _, ah := range g.arrows {
		if g.nodes[ah].Arrow.To == list {
			return true
		}
	}
	return false
}

func (g *Graph) hasFertile(list *Node) bool {
	for _, h := range list.List.Actions {
		if n, ok := g.nodes[h]; ok && IsFertile(n.Action()) {
			return true
		}
	}
	return false
}

// Connect adds an active arrow from test to list. A test has at most one
// arrow, and a list with a fertile operator cannot receive one.
func (g *Graph) Connect(test, list node.Handle) (node.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tn, ok := g.nodes[test]
	if !ok {
		return node.Nil, fmt.Errorf("connect %d: %w", test, ErrUnknownNode)
	}
	if tn.Kind != KindTest {
		return node.Nil, &TopologyError{Code: ErrCodeWrongKind, Node: test, Message: "arrows start at tests"}
	}
	ln, err := g.list(list, "connect")
	if err != nil {
		return node.Nil, err
	}
	if _, ok := g.arrows[test]; ok {
		return node.Nil, &TopologyError{Code: ErrCodeDuplicate, Node: test, Message: "test already has an arrow"}
	}
	if g.hasFertile(ln) {
		return node.Nil, &TopologyError{Code: ErrCodeFertileRouted, Node: list, Message: "target list births particles"}
	}
	h := g.addLocked(&Node{Kind: KindArrow, Arrow: &Arrow{From: test, To: list, Active: true}})
	g.arrows[test] = h
	return h, nil
}

// SetArrowActive gates routing along an arrow.
func (g *Graph) SetArrowActive(arrow node.Handle, active bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[arrow]
	if !ok {
		return fmt.Errorf("set arrow %d: %w", arrow, ErrUnknownNode)
	}
	if n.Kind != KindArrow {
		return &TopologyError{Code: ErrCodeWrongKind, Node: arrow, Message: "not an arrow"}
	}
	n.Arrow.Active = active
	g.version.Add(1)
	return nil
}

// ArrowFrom returns the arrow leaving test, if any.
func (g *Graph) ArrowFrom(test node.Handle) (Arrow, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ah, ok := g.arrows[test]
	if !ok {
		return Arrow{}, false
	}
	return *g.nodes[ah].Arrow, true
}

// Reachable returns the lists reachable from roots by following arrows.
func (g *Graph) Reachable(roots []node.Handle) map[node.Handle]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[node.Handle]bool)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[h] {
			continue
		}
		n, ok := g.nodes[h]
		if !ok || n.Kind != KindList {
			continue
		}
		seen[h] = true
		for _, a := range n.List.Actions {
			if ah, ok := g.arrows[a]; ok {
				stack = append(stack, g.nodes[ah].Arrow.To)
			}
		}
	}
	return seen
}

// Remove deletes a node and every edge that mentions it. Removing a list
// removes arrows into it; removing a test removes its arrow; removing an
// operator or test takes it out of every list.
func (g *Graph) Remove(h node.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[h]
	if !ok {
		return fmt.Errorf("remove %d: %w", h, ErrUnknownNode)
	}
	switch n.Kind {
	case KindArrow:
		delete(g.arrows, n.Arrow.From)
	case KindList:
		for test, ah := range g.arrows {
			if g.nodes[ah].Arrow.To == h {
				delete(g.nodes, ah)
				delete(g.arrows, test)
			}
		}
	case KindOperator, KindTest:
		if ah, ok := g.arrows[h]; ok {
			delete(g.nodes, ah)
			delete(g.arrows, h)
		}
		for _, other := range g.nodes {
			if other.Kind == KindList {
				other.List.Actions = slices.DeleteFunc(other.List.Actions, func(a node.Handle) bool { return a == h })
			}
		}
	}
	delete(g.nodes, h)
	g.version.Add(1)
	return nil
}

// SetListIntegrator installs a list-specific integrator.
func (g *Graph) SetListIntegrator(list node.Handle, in Integrator) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ln, err := g.list(list, "set integrator")
	if err != nil {
		return err
	}
	ln.List.Integrator = in
	g.version.Add(1)
	return nil
}

// Resolved is a list with its actions looked up, valid for one graph
// version.
type Resolved struct {
	List       node.Handle
	Version    uint64
	Actions    []*Node
	Arrows     map[node.Handle]Arrow // test -> arrow
	Integrator Integrator
	Shrinks    bool
}

// Resolve looks up every action of list. Handles that no longer resolve
// are dropped.
func (g *Graph) Resolve(list node.Handle) (*Resolved, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ln, err := g.list(list, "resolve")
	if err != nil {
		return nil, err
	}
	r := &Resolved{
		List:       list,
		Version:    g.version.Load(),
		Arrows:     make(map[node.Handle]Arrow),
		Integrator: ln.List.Integrator,
	}
	for _, h := range ln.List.Actions {
		n, ok := g.nodes[h]
		if !ok {
			continue
		}
		r.Actions = append(r.Actions, n)
		if CanShrink(n.Action()) {
			r.Shrinks = true
		}
		if ah, ok := g.arrows[h]; ok {
			r.Arrows[h] = *g.nodes[ah].Arrow
		}
	}
	return r, nil
}
