package scene

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/components"
	"github.com/pthm-cable/pflow/config"
	"github.com/pthm-cable/pflow/group"
	"github.com/pthm-cable/pflow/lod"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
	"github.com/pthm-cable/pflow/telemetry"
)

// parallelThreshold is the minimum number of groups to update in parallel.
// Below this, a single goroutine is faster.
const parallelThreshold = 4

// Options configure a Simulation. Zero values take the defaults of the
// group package.
type Options struct {
	Workers           int
	MaxSubsteps       int
	MaxShrinkRetries  int
	MaxTransferRounds int
	CacheFrames       int

	Budget     float64 // particles shared by every system
	DistanceK  float64
	MinBenefit float64

	Integrator action.Integrator
	Logger     *slog.Logger
	Perf       *telemetry.PerfCollector

	// OnInvalidate receives group invalidations once the frame is done.
	OnInvalidate func(g *group.Group, kind group.Invalidation)

	// OnFrame receives the stats of every completed frame. Its time is
	// recorded as the telemetry phase.
	OnFrame func(FrameStats)
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:           cfg.Derived.Workers,
		MaxSubsteps:       cfg.Simulation.MaxSubsteps,
		MaxShrinkRetries:  cfg.Simulation.MaxShrinkRetries,
		MaxTransferRounds: cfg.Simulation.MaxTransferRounds,
		CacheFrames:       cfg.Simulation.CacheFrames,
		Budget:            cfg.LOD.Budget,
		DistanceK:         cfg.LOD.DistanceK,
		MinBenefit:        cfg.LOD.MinBenefit,
	}
}

// FrameStats is what one Frame did.
type FrameStats struct {
	Time     ptime.Time
	Counters telemetry.FrameCounters
	LOD      lod.Result
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	c := s.Counters
	return slog.GroupValue(
		slog.String("time", s.Time.String()),
		slog.Int("born", c.Born),
		slog.Int("routed", c.Routed),
		slog.Int("retries", c.Retries),
		slog.Int("failures", c.Failures),
		slog.Int("dropped", c.Dropped),
		slog.Int("rounds", c.Rounds),
		slog.Float64("lod_used", c.LODUsed),
	)
}

// Simulation advances every system of a registry one frame at a time.
type Simulation struct {
	reg  *Registry
	opts Options
	log  *slog.Logger

	viewer     r3.Vec
	proceeding atomic.Bool
	last       ptime.Time
	frames     int64
}

// NewSimulation creates a simulation over reg. The first frame runs from
// time zero.
func NewSimulation(reg *Registry, opts Options) *Simulation {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxTransferRounds <= 0 {
		opts.MaxTransferRounds = 1
	}
	return &Simulation{
		reg:  reg,
		opts: opts,
		log:  opts.Logger,
	}
}

// Registry returns the systems and groups being simulated.
func (s *Simulation) Registry() *Registry { return s.reg }

// SetViewer moves the point level of detail is measured from.
func (s *Simulation) SetViewer(p r3.Vec) { s.viewer = p }

// Budget returns the particle budget shared by every system.
func (s *Simulation) Budget() float64 { return s.opts.Budget }

// SetBudget changes the particle budget from the next frame on.
func (s *Simulation) SetBudget(b float64) {
	if b < 0 {
		b = 0
	}
	s.opts.Budget = b
}

// Time returns the time of the last frame.
func (s *Simulation) Time() ptime.Time { return s.last }

// Frames returns the number of frames run.
func (s *Simulation) Frames() int64 { return s.frames }

func (s *Simulation) phase(name string) {
	if s.opts.Perf != nil {
		s.opts.Perf.StartPhase(name)
	}
}

// Frame brings every active group to t. Group errors are logged and
// counted; only a cancelled context aborts the frame.
func (s *Simulation) Frame(ctx context.Context, t ptime.Time) (FrameStats, error) {
	if s.opts.Perf != nil {
		s.opts.Perf.StartFrame()
		defer s.opts.Perf.EndFrame()
	}
	stats := FrameStats{Time: t}

	s.phase(telemetry.PhaseLOD)
	entries := s.reg.entries()
	stats.LOD = s.distribute(entries, t)
	stats.Counters.LODUsed = stats.LOD.Used

	s.phase(telemetry.PhaseReconcile)
	s.reconcile(entries, t)
	active := s.activeGroups()

	s.proceeding.Store(true)
	finished := false
	defer func() {
		if !finished {
			s.finish()
		}
	}()

	s.phase(telemetry.PhasePreUpdate)
	for _, g := range active {
		if err := g.PreUpdate(t); err != nil {
			s.log.Warn("pre-update failed", "group", g.ID, "error", err)
		}
	}

	if err := s.rounds(ctx, active, t, &stats.Counters); err != nil {
		return stats, err
	}

	s.phase(telemetry.PhasePostUpdate)
	for _, g := range active {
		if err := g.PostUpdate(t); err != nil {
			s.log.Warn("post-update failed", "group", g.ID, "error", err)
		}
	}

	for _, e := range entries {
		stats.Counters.Born += e.lod.Allowance - e.sys.Ref.BornAllowance()
	}

	s.phase(telemetry.PhaseFlush)
	finished = true
	s.finish()
	s.last = t
	s.frames++

	if s.opts.OnFrame != nil {
		s.phase(telemetry.PhaseTelemetry)
		s.opts.OnFrame(stats)
	}
	return stats, nil
}

// finish clears the proceeding flag and delivers delayed invalidations.
func (s *Simulation) finish() {
	s.proceeding.Store(false)
	for _, g := range s.reg.Groups() {
		g.Flush()
	}
}

// distribute hands the particle budget to systems by benefit and turns each
// grant into a birth allowance.
func (s *Simulation) distribute(entries []systemEntry, t ptime.Time) lod.Result {
	actors := make([]lod.Actor, len(entries))
	for i, e := range entries {
		live := 0
		for _, g := range s.reg.GroupsOf(e.entity) {
			live += g.Count()
		}
		e.lod.Live = live
		e.lod.Benefit = s.benefit(e, t)
		e.lod.Granted = 0
		e.lod.Suggested = 0
		want := float64(e.em.MaxParticles)
		if e.em.MaxParticles <= 0 {
			want = math.Inf(1)
		}
		if !e.sys.Alive(t) {
			want = 0
		}
		actors[i] = &systemActor{lod: e.lod, want: want}
	}

	res := lod.Distribute(actors, s.opts.Budget)

	for _, e := range entries {
		e.lod.Allowance = max(int(e.lod.Granted)-e.lod.Live, 0)
		e.sys.Ref.SetBornAllowance(e.lod.Allowance)
	}
	return res
}

func (s *Simulation) benefit(e systemEntry, t ptime.Time) float64 {
	if !e.sys.Alive(t) || e.em.Importance <= 0 {
		return 0
	}
	d := r3.Norm(r3.Sub(e.em.Position, s.viewer))
	return max(e.em.Importance/(1+s.opts.DistanceK*d), s.opts.MinBenefit)
}

// systemActor adapts a system's LOD component to the distributor.
type systemActor struct {
	lod  *components.LOD
	want float64
}

func (a *systemActor) Benefit() float64 { return a.lod.Benefit }

func (a *systemActor) SetResource(suggested, maxRemaining, rel float64) float64 {
	a.lod.Suggested = suggested
	a.lod.Granted = min(suggested, a.want)
	return a.lod.Granted
}

func (a *systemActor) IncreaseResource(offer float64) float64 {
	extra := min(offer, a.want-a.lod.Granted)
	if extra <= 0 {
		return 0
	}
	a.lod.Granted += extra
	return extra
}

// reconcile creates groups for newly reachable lists, drops groups whose
// list is gone and sets each group's status from its system's life. Groups
// of a system are only created once its life overlaps the frame.
func (s *Simulation) reconcile(entries []systemEntry, t ptime.Time) {
	start := ptime.Min(s.last, t)
	for _, e := range entries {
		reachable := s.reg.graph.Reachable(e.sys.Roots)

		for _, g := range s.reg.GroupsOf(e.entity) {
			if !reachable[g.List] {
				s.log.Info("group removed", "group", g.ID, "system", e.sys.Name, "list", uint32(g.List))
				s.reg.removeGroup(g.ID)
			}
		}

		status := group.Idle
		if e.sys.Life.Start.LessEq(t) && start.Less(e.sys.Life.End) {
			status = group.Active
		}

		if status == group.Active {
			lists := make([]node.Handle, 0, len(reachable))
			for h := range reachable {
				lists = append(lists, h)
			}
			slices.Sort(lists)
			for _, h := range lists {
				if _, ok := s.reg.GroupFor(e.sys.Ref, h); ok {
					continue
				}
				g := group.New(s.reg.allocID(), s.reg.graph, e.sys.Ref, h, ptime.Max(start, e.sys.Life.Start), s.groupOptions())
				s.reg.addGroup(e.entity, g)
			}
		}

		for _, g := range s.reg.GroupsOf(e.entity) {
			g.Valid = e.sys.Life
			g.SetStatus(status)
		}
	}
}

func (s *Simulation) groupOptions() group.Options {
	return group.Options{
		MaxSubsteps:      s.opts.MaxSubsteps,
		MaxShrinkRetries: s.opts.MaxShrinkRetries,
		CacheFrames:      s.opts.CacheFrames,
		Integrator:       s.opts.Integrator,
		Logger:           s.log,
		Proceeding:       &s.proceeding,
		OnInvalidate:     s.opts.OnInvalidate,
	}
}

func (s *Simulation) activeGroups() []*group.Group {
	var out []*group.Group
	for _, g := range s.reg.Groups() {
		if g.Status() == group.Active {
			out = append(out, g)
		}
	}
	return out
}

// delivery is a batch of routed particles waiting for its destination.
type delivery struct {
	from, to *group.Group
	c        *channel.Container
}

// rounds alternates parallel updates with surplus delivery. Every split of
// a round is collected before any merge. Batches whose destination has not
// reached their time wait for a later round; what is left after the last
// round is dropped.
func (s *Simulation) rounds(ctx context.Context, active []*group.Group, t ptime.Time, c *telemetry.FrameCounters) error {
	run := active
	var held []delivery
	for round := 0; round < s.opts.MaxTransferRounds; round++ {
		if len(run) == 0 && len(held) == 0 {
			break
		}
		c.Rounds++

		s.phase(telemetry.PhaseUpdate)
		if err := s.updateAll(ctx, run, t); err != nil {
			return err
		}

		s.phase(telemetry.PhaseTransfer)
		for _, g := range run {
			st := g.LastStats()
			c.Retries += st.Retries
			c.Failures += st.Failures
			c.Routed += st.Routed
			for _, tr := range g.TakeSurplus() {
				dst, ok := s.reg.GroupFor(g.System, tr.To)
				if !ok || dst.Status() != group.Active {
					c.Dropped += tr.Particles.Count()
					continue
				}
				held = append(held, delivery{from: g, to: dst, c: tr.Particles})
			}
		}

		waiting := held[:0]
		for _, d := range held {
			err := d.to.AppendSurplusContainer(d.c)
			switch {
			case err == nil:
			case errors.Is(err, group.ErrAhead):
				waiting = append(waiting, d)
			default:
				s.log.Warn("transfer dropped", "from", d.from.ID, "to", d.to.ID, "count", d.c.Count(), "error", err)
				c.Dropped += d.c.Count()
			}
		}
		held = waiting

		run = run[:0:0]
		for _, g := range active {
			if g.SyncTime().Less(t) {
				run = append(run, g)
			}
		}
	}
	for _, d := range held {
		s.log.Warn("transfer dropped", "from", d.from.ID, "to", d.to.ID, "count", d.c.Count(), "reason", "destination behind")
		c.Dropped += d.c.Count()
	}
	return nil
}

// updateAll runs Update on every group, in parallel when there are enough.
func (s *Simulation) updateAll(ctx context.Context, groups []*group.Group, t ptime.Time) error {
	errs := make([]error, len(groups))
	if len(groups) < parallelThreshold || s.opts.Workers == 1 {
		for i, g := range groups {
			if err := ctx.Err(); err != nil {
				return err
			}
			errs[i] = g.Update(t)
		}
	} else {
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(s.opts.Workers)
		for i, g := range groups {
			eg.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				errs[i] = g.Update(t)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	for i, err := range errs {
		if err != nil {
			s.log.Warn("group update failed", "group", groups[i].ID, "error", err)
		}
	}
	return nil
}
