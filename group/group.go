// Package group runs one action list for one particle system: it owns the
// particle container, advances it through the list's operators and tests,
// and hands routed particles to other lists.
package group

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Status of a group.
type Status uint8

const (
	Active Status = iota
	// Idle groups keep their particles but are not updated.
	Idle
)

func (s Status) String() string {
	if s == Idle {
		return "idle"
	}
	return "active"
}

var (
	// ErrListRemoved is returned when the group's list no longer resolves.
	ErrListRemoved = errors.New("group: action list removed")
	// ErrAhead is returned when arriving particles are later than the
	// group's sync time.
	ErrAhead = errors.New("group: particles ahead of sync time")
	// ErrNoCache is returned when an update goes back in time past every
	// cached frame.
	ErrNoCache = errors.New("group: no cached frame before requested time")
)

// Options configure a group. Zero values take the defaults below.
type Options struct {
	MaxSubsteps      int // sub-steps per Update, default 4
	MaxShrinkRetries int // list pass re-runs per sub-step, default 8
	CacheFrames      int // snapshots kept for IsSync and rewinds, 0 disables

	Integrator action.Integrator
	Logger     *slog.Logger

	// Proceeding is the scene-wide flag; invalidation is delayed while it
	// is set.
	Proceeding *atomic.Bool
	// OnInvalidate receives container and cache invalidations.
	OnInvalidate func(g *Group, kind Invalidation)
}

func (o *Options) fill() {
	if o.MaxSubsteps <= 0 {
		o.MaxSubsteps = 4
	}
	if o.MaxShrinkRetries <= 0 {
		o.MaxShrinkRetries = 8
	}
	if o.Integrator == nil {
		o.Integrator = action.StandardIntegrator{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Transfer is a batch of particles split out for another list.
type Transfer struct {
	To        node.Handle
	Particles *channel.Container
}

// Group pairs one system with one action list.
type Group struct {
	ID     int
	System *action.SystemRef
	List   node.Handle
	Valid  ptime.Interval

	graph     *action.Graph
	container *channel.Container
	opts      Options
	log       *slog.Logger

	status Status
	sync   ptime.Time

	resolved    *action.Resolved
	initialized map[node.Handle]bool
	failed      map[node.Handle]bool

	surplus []Transfer
	cache   []snapshot
	pending Invalidation

	stats Stats
}

// Stats counts what the last Update did.
type Stats struct {
	Substeps  int
	Retries   int
	Failures  int
	Routed    int
	Particles int
}

// LogValue implements slog.LogValuer for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("substeps", s.Substeps),
		slog.Int("retries", s.Retries),
		slog.Int("failures", s.Failures),
		slog.Int("routed", s.Routed),
		slog.Int("particles", s.Particles),
	)
}

// New creates an empty group synced at start.
func New(id int, graph *action.Graph, system *action.SystemRef, list node.Handle, start ptime.Time, opts Options) *Group {
	opts.fill()
	return &Group{
		ID:          id,
		System:      system,
		List:        list,
		Valid:       ptime.Forever,
		graph:       graph,
		container:   channel.NewContainer(),
		opts:        opts,
		log:         opts.Logger.With("group", id, "system", system.Name, "list", uint32(list)),
		sync:        start,
		initialized: make(map[node.Handle]bool),
		failed:      make(map[node.Handle]bool),
	}
}

// Container returns the owned container. Callers outside an update must
// treat it as read-only.
func (g *Group) Container() *channel.Container { return g.container }

// View returns a read-only view of the particles.
func (g *Group) View() channel.View { return channel.NewView(g.container, node.Nil) }

// Count returns the number of particles.
func (g *Group) Count() int { return g.container.Count() }

// Status returns whether the group is updated.
func (g *Group) Status() Status { return g.status }

// SetStatus activates or idles the group.
func (g *Group) SetStatus(s Status) { g.status = s }

// SyncTime returns the time every particle was last brought to.
func (g *Group) SyncTime() ptime.Time { return g.sync }

// LastStats returns the counters of the most recent Update.
func (g *Group) LastStats() Stats { return g.stats }

// InvalidateActions drops the resolved action list so the next update
// looks every handle up again.
func (g *Group) InvalidateActions() {
	g.resolved = nil
}

func (g *Group) resolve() (*action.Resolved, error) {
	if g.resolved != nil && g.resolved.Version == g.graph.Version() {
		return g.resolved, nil
	}
	r, err := g.graph.Resolve(g.List)
	if err != nil {
		g.resolved = nil
		return nil, fmt.Errorf("%w: %w", ErrListRemoved, err)
	}
	live := make(map[node.Handle]bool, len(r.Actions))
	for _, n := range r.Actions {
		live[n.Handle] = true
	}
	for h := range g.initialized {
		if !live[h] {
			delete(g.initialized, h)
		}
	}
	g.resolved = r
	return r, nil
}

func (g *Group) integrator(r *action.Resolved) action.Integrator {
	if r.Integrator != nil {
		return r.Integrator
	}
	return g.opts.Integrator
}

// streamKey names this group's random streams.
func (g *Group) streamKey() action.StreamKey {
	return action.StreamKey{System: g.System.ID, List: g.List}
}

func (g *Group) args(n *action.Node, start ptime.Time, in action.Integrator) *action.Args {
	return &action.Args{
		Container:  g.container,
		Start:      start,
		System:     g.System,
		Action:     n.Handle,
		Integrator: in,
		Rand:       n.Streams.For(g.streamKey()),
	}
}

// PreUpdate runs pre hooks with read-only access.
func (g *Group) PreUpdate(t ptime.Time) error {
	r, err := g.resolve()
	if err != nil {
		return err
	}
	for _, n := range r.Actions {
		if h, ok := n.Action().(action.PreHook); ok {
			h.PreUpdate(channel.NewView(g.container, n.Handle), t)
		}
	}
	return nil
}

// PostUpdate runs post hooks with read-only access.
func (g *Group) PostUpdate(t ptime.Time) error {
	r, err := g.resolve()
	if err != nil {
		return err
	}
	for _, n := range r.Actions {
		if h, ok := n.Action().(action.PostHook); ok {
			h.PostUpdate(channel.NewView(g.container, n.Handle), t)
		}
	}
	return nil
}

// Update advances every particle to t. Failing actions are logged and
// skipped until the next Update. Particles routed elsewhere are held for
// TakeSurplus.
func (g *Group) Update(t ptime.Time) error {
	g.stats = Stats{}
	if g.status == Idle {
		return nil
	}
	r, err := g.resolve()
	if err != nil {
		return err
	}
	if t.Less(g.sync) {
		if err := g.rewind(t); err != nil {
			return err
		}
	}
	clear(g.failed)
	g.init(r)

	before := g.container.Count()
	for g.sync.Less(t) && g.stats.Substeps < g.opts.MaxSubsteps {
		g.stats.Substeps++
		end := g.pass(r, g.sync, t)
		g.sync = end
	}
	if g.sync.Less(t) {
		g.log.Warn("update stopped short", "target", t.String(), "reached", g.sync.String(), "substeps", g.stats.Substeps)
	}
	g.stats.Particles = g.container.Count()
	g.remember()
	if g.stats.Substeps > 0 || before != g.stats.Particles {
		g.InvalidateContainer(InvalidBoth)
	}
	return nil
}

func (g *Group) init(r *action.Resolved) {
	in := g.integrator(r)
	for _, n := range r.Actions {
		if g.initialized[n.Handle] {
			continue
		}
		ini, ok := n.Action().(action.Initializer)
		if !ok {
			g.initialized[n.Handle] = true
			continue
		}
		if !ini.Init(g.args(n, g.sync, in)) {
			g.log.Warn("action init failed", "action", n.Name, "handle", uint32(n.Handle))
			g.failed[n.Handle] = true
			g.stats.Failures++
			continue
		}
		g.initialized[n.Handle] = true
	}
}

// activeIn reports whether iv overlaps the step (start, end].
func activeIn(iv ptime.Interval, start, end ptime.Time) bool {
	return start.Less(iv.End) && iv.Start.LessEq(end)
}

// pass runs the list once from start towards end and returns the end the
// pass reached. An action that lowers the end causes a re-run from a
// snapshot when the list has shrinking actions.
func (g *Group) pass(r *action.Resolved, start, end ptime.Time) ptime.Time {
	in := g.integrator(r)
	var (
		snap   *channel.Container
		states map[node.Handle][]byte
	)
	if r.Shrinks {
		snap = g.container.Clone()
		states = g.captureStates(r)
	}

	for attempt := 0; ; attempt++ {
		routed, born, shrunk := g.run(r, in, start, &end, attempt < g.opts.MaxShrinkRetries && snap != nil)
		if !shrunk {
			for _, tr := range routed {
				g.stats.Routed += tr.Particles.Count()
			}
			g.surplus = append(g.surplus, routed...)
			break
		}
		g.stats.Retries++
		g.System.RefundBorn(born)
		g.container = snap.Clone()
		g.restoreStates(r, states)
	}

	in.ProceedAll(g.container, end)
	if flag, ok := channel.Get[bool](g.container, channel.New, node.Nil); ok && g.container.Count() > 0 {
		flag.SetAll(false)
	}
	return end
}

// run executes each action once. When retry is set and an action lowers
// *end, it stops and reports shrunk so the caller can restore and re-run.
func (g *Group) run(r *action.Resolved, in action.Integrator, start ptime.Time, end *ptime.Time, retry bool) (routed []Transfer, born int, shrunk bool) {
	for _, n := range r.Actions {
		if g.failed[n.Handle] || !activeIn(n.Active, start, *end) {
			continue
		}
		a := g.args(n, start, in)
		want := *end
		var ok bool
		switch n.Kind {
		case action.KindOperator:
			ok = n.Operator.Proceed(a, &want)
		case action.KindTest:
			var out *Transfer
			ok, out = g.test(r, n, a, &want)
			if out != nil {
				routed = append(routed, *out)
			}
		}
		born += a.Born
		if !ok {
			g.log.Warn("action failed", "action", n.Name, "handle", uint32(n.Handle), "start", start.String(), "end", end.String())
			g.failed[n.Handle] = true
			g.stats.Failures++
			continue
		}
		if !want.Less(*end) {
			continue
		}
		if !start.Less(want) {
			g.log.Warn("action shrank step to nothing", "action", n.Name, "handle", uint32(n.Handle))
			g.failed[n.Handle] = true
			g.stats.Failures++
			continue
		}
		if retry {
			*end = want
			return routed, born, true
		}
		g.log.Warn("step shrink ignored", "action", n.Name, "handle", uint32(n.Handle), "want", want.String())
	}
	return routed, born, false
}

// test runs one test and splits out the satisfied particles when its arrow
// is active and leads to another list.
func (g *Group) test(r *action.Resolved, n *action.Node, a *action.Args, end *ptime.Time) (bool, *Transfer) {
	count := g.container.Count()
	result := channel.NewMask(count)
	at := make([]ptime.Time, count)
	if !n.Test.Proceed(a, end, result, at) {
		return false, nil
	}
	arrow, ok := r.Arrows[n.Handle]
	if !ok || !arrow.Active || arrow.To == g.List || result.TrueCount() == 0 {
		return true, nil
	}
	out := g.container.Split(result)
	out.DropNonTransferable()
	return true, &Transfer{To: arrow.To, Particles: out}
}

// TakeSurplus returns and clears the particles routed since the last call,
// in the order they were split out.
func (g *Group) TakeSurplus() []Transfer {
	out := g.surplus
	g.surplus = nil
	return out
}

// AppendSurplusContainer merges arriving particles. They are first brought
// to the group's sync time and flagged New. c is emptied on success.
func (g *Group) AppendSurplusContainer(c *channel.Container) error {
	if c.Count() == 0 {
		return nil
	}
	if tm, ok := channel.Get[ptime.Time](c, channel.Time, node.Nil); ok {
		for i := range c.Count() {
			if g.sync.Less(tm.Value(i)) {
				return fmt.Errorf("append %d particles at %s: %w", c.Count(), tm.Value(i), ErrAhead)
			}
		}
	}
	in := g.opts.Integrator
	if r, err := g.resolve(); err == nil {
		in = g.integrator(r)
	}
	in.ProceedAll(c, g.sync)

	flag, _, err := channel.Ensure[bool](c, channel.New, channel.Bools, channel.Meta{Transferable: true})
	if err != nil {
		return fmt.Errorf("append surplus: %w", err)
	}
	flag.SetAll(true)
	if err := g.container.Append(c); err != nil {
		return fmt.Errorf("append surplus: %w", err)
	}
	g.InvalidateContainer(InvalidBoth)
	return nil
}
