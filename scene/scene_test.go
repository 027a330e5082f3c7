package scene

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/group"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ops"
	"github.com/pthm-cable/pflow/ptime"
	"github.com/pthm-cable/pflow/telemetry"
)

const fountain = `
name: fountain
lists:
  - name: emit
    actions:
      - type: birth
        name: birth
        params: {rate: 10}
      - type: sendOut
        name: send
        to: fall
  - name: fall
    actions:
      - type: force
        name: gravity
        params:
          acceleration: {x: 0, y: -9.8, z: 0}
systems:
  - name: fountain
    roots: [emit]
    importance: 1
    maxParticles: 1000
`

func sec(s float64) ptime.Time { return ptime.FromSeconds(s) }

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func build(t *testing.T, src string) *Registry {
	t.Helper()
	sc, err := ParseScene([]byte(src))
	require.NoError(t, err)
	reg, err := sc.Build(ops.NewRegistry(), 7)
	require.NoError(t, err)
	return reg
}

func simulate(t *testing.T, src string, opts Options) *Simulation {
	t.Helper()
	if opts.Budget == 0 {
		opts.Budget = 10000
	}
	opts.Logger = quiet()
	return NewSimulation(build(t, src), opts)
}

func groupOf(t *testing.T, s *Simulation, system, list string) *group.Group {
	t.Helper()
	reg := s.Registry()
	e, ok := reg.SystemByName(system)
	require.True(t, ok)
	sys, _, _, ok := reg.System(e)
	require.True(t, ok)
	h, ok := reg.List(list)
	require.True(t, ok)
	g, ok := reg.GroupFor(sys.Ref, h)
	require.True(t, ok, "no group for %s/%s", system, list)
	return g
}

func TestBuildScene(t *testing.T) {
	reg := build(t, fountain)
	assert.Equal(t, 1, reg.SystemCount())

	emit, ok := reg.List("emit")
	require.True(t, ok)
	fall, ok := reg.List("fall")
	require.True(t, ok)
	send, ok := reg.Action("send")
	require.True(t, ok)

	arrow, ok := reg.Graph().ArrowFrom(send)
	require.True(t, ok)
	assert.Equal(t, fall, arrow.To)
	assert.True(t, arrow.Active)

	reach := reg.Graph().Reachable([]node.Handle{emit})
	assert.True(t, reach[emit])
	assert.True(t, reach[fall])
}

func TestBuildSceneErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown root", "lists: [{name: a}]\nsystems: [{name: s, roots: [b]}]\n"},
		{"unknown arrow target", "lists: [{name: a, actions: [{type: sendOut, to: b}]}]\n"},
		{"unknown type", "lists: [{name: a, actions: [{type: nope}]}]\n"},
		{"duplicate list", "lists: [{name: a}, {name: a}]\n"},
		{"duplicate system", "lists: [{name: a}]\nsystems: [{name: s, roots: [a]}, {name: s, roots: [a]}]\n"},
		{"unknown ref", "lists: [{name: a, actions: [{ref: x}]}]\n"},
		{"birth into routed list", "lists: [{name: a, actions: [{type: sendOut, to: b}]}, {name: b, actions: [{type: birth}]}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := ParseScene([]byte(tt.src))
			require.NoError(t, err)
			_, err = sc.Build(ops.NewRegistry(), 1)
			assert.Error(t, err)
		})
	}
}

func TestSharedActionRef(t *testing.T) {
	reg := build(t, `
lists:
  - name: a
    actions: [{type: force, name: g}]
  - name: b
    actions: [{ref: g}]
`)
	g, ok := reg.Action("g")
	require.True(t, ok)
	for _, name := range []string{"a", "b"} {
		h, _ := reg.List(name)
		r, err := reg.Graph().Resolve(h)
		require.NoError(t, err)
		require.Len(t, r.Actions, 1)
		assert.Equal(t, g, r.Actions[0].Handle)
	}
}

func TestFrameRoutesBetweenGroups(t *testing.T) {
	s := simulate(t, fountain, Options{Workers: 1})

	st, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	assert.Equal(t, 10, st.Counters.Born)
	assert.Equal(t, 10, st.Counters.Routed)
	assert.Equal(t, 0, st.Counters.Dropped)
	assert.Equal(t, 1, st.Counters.Rounds)

	emit := groupOf(t, s, "fountain", "emit")
	fall := groupOf(t, s, "fountain", "fall")
	assert.Equal(t, 0, emit.Count())
	assert.Equal(t, 10, fall.Count())
	assert.True(t, fall.SyncTime().Equal(sec(1)))

	st, err = s.Frame(context.Background(), sec(2))
	require.NoError(t, err)
	assert.Equal(t, 10, st.Counters.Born)
	assert.Equal(t, 20, fall.Count())
	assert.True(t, s.Time().Equal(sec(2)))
	assert.Equal(t, int64(2), s.Frames())
}

func TestLODLimitsBirths(t *testing.T) {
	s := simulate(t, fountain, Options{Workers: 1, Budget: 5})

	st, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	assert.Equal(t, 5, st.Counters.Born)
	assert.InDelta(t, 5, st.LOD.Used, 1e-9)

	// the budget is spent on live particles
	st, err = s.Frame(context.Background(), sec(2))
	require.NoError(t, err)
	assert.Equal(t, 0, st.Counters.Born)

	e, _ := s.Registry().SystemByName("fountain")
	_, _, l, _ := s.Registry().System(e)
	assert.Equal(t, 5, l.Live)
	assert.Equal(t, 0, l.Allowance)
}

func TestLODSplitsByBenefit(t *testing.T) {
	s := simulate(t, `
lists:
  - name: a
    actions: [{type: birth, params: {rate: 100}}]
  - name: b
    actions: [{type: birth, params: {rate: 100}}]
systems:
  - {name: near, roots: [a], importance: 3, maxParticles: 1000}
  - {name: far, roots: [b], importance: 1, maxParticles: 1000, position: [10, 0, 0]}
`, Options{Workers: 1, Budget: 40})
	s.SetViewer(r3.Vec{})

	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)

	near, _ := s.Registry().SystemByName("near")
	far, _ := s.Registry().SystemByName("far")
	_, _, ln, _ := s.Registry().System(near)
	_, _, lf, _ := s.Registry().System(far)
	assert.InDelta(t, 30, ln.Granted, 1e-9)
	assert.InDelta(t, 10, lf.Granted, 1e-9)
	assert.Equal(t, 30, groupOf(t, s, "near", "a").Count())
	assert.Equal(t, 10, groupOf(t, s, "far", "b").Count())
}

func TestTransfersWaitForDestination(t *testing.T) {
	src := `
lists:
  - name: emit
    actions:
      - {type: birth, params: {rate: 10}}
      - {type: sendOut, to: slow}
  - name: slow
    actions:
      - {type: force, params: {maxStep: 0.25}}
systems:
  - {name: s, roots: [emit], importance: 1}
`
	s := simulate(t, src, Options{Workers: 1, MaxSubsteps: 1, MaxTransferRounds: 4})
	st, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	assert.Equal(t, 4, st.Counters.Rounds)
	assert.Equal(t, 0, st.Counters.Dropped)
	assert.Equal(t, 10, groupOf(t, s, "s", "slow").Count())

	s = simulate(t, src, Options{Workers: 1, MaxSubsteps: 1, MaxTransferRounds: 2})
	st, err = s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Counters.Rounds)
	assert.Equal(t, 10, st.Counters.Dropped)
	slow := groupOf(t, s, "s", "slow")
	assert.Equal(t, 0, slow.Count())
	assert.True(t, slow.SyncTime().Equal(sec(0.5)))
}

func TestSystemLifeGatesGroups(t *testing.T) {
	s := simulate(t, `
lists:
  - name: a
    actions: [{type: birth, params: {rate: 10}}]
systems:
  - {name: late, roots: [a], importance: 1, start: 2, end: 3}
`, Options{Workers: 1})

	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	assert.Empty(t, s.Registry().Groups())

	st, err := s.Frame(context.Background(), sec(3))
	require.NoError(t, err)
	g := groupOf(t, s, "late", "a")
	assert.Equal(t, 10, st.Counters.Born)
	assert.Equal(t, 10, g.Count())
	assert.Equal(t, sec(2), g.Valid.Start)

	_, err = s.Frame(context.Background(), sec(4))
	require.NoError(t, err)
	assert.Equal(t, group.Idle, g.Status())
	assert.Equal(t, 10, g.Count())
}

func TestParallelMatchesSequential(t *testing.T) {
	src := `
lists:
  - name: emit
    actions:
      - {type: birth, params: {rate: 50}}
      - {type: ageTest, params: {age: 0.5}, to: old}
  - name: old
    actions:
      - {type: force, params: {acceleration: {y: -1}}}
systems:
  - {name: a, roots: [emit], importance: 1}
  - {name: b, roots: [emit], importance: 2}
  - {name: c, roots: [emit], importance: 3}
`
	seq := simulate(t, src, Options{Workers: 1})
	par := simulate(t, src, Options{Workers: 4})
	for i := 1; i <= 5; i++ {
		a, err := seq.Frame(context.Background(), sec(float64(i)*0.5))
		require.NoError(t, err)
		b, err := par.Frame(context.Background(), sec(float64(i)*0.5))
		require.NoError(t, err)
		assert.Equal(t, a.Counters, b.Counters, "frame %d", i)
	}
	for _, sys := range []string{"a", "b", "c"} {
		for _, list := range []string{"emit", "old"} {
			assert.Equal(t, groupOf(t, seq, sys, list).Count(), groupOf(t, par, sys, list).Count(), "%s/%s", sys, list)
		}
	}
	assert.Positive(t, groupOf(t, par, "c", "old").Count())
}

func TestFrameStopsOnCancel(t *testing.T) {
	s := simulate(t, fountain, Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Frame(ctx, sec(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), s.Frames())
}

func TestInvalidationDeliveredAfterFrame(t *testing.T) {
	var got []int
	s := simulate(t, fountain, Options{Workers: 1, OnInvalidate: func(g *group.Group, kind group.Invalidation) {
		got = append(got, g.ID)
		assert.Equal(t, group.InvalidBoth, kind)
	}})

	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, got)
	for _, g := range s.Registry().Groups() {
		assert.Zero(t, g.Pending())
	}
}

func TestGraphEditsReconcileGroups(t *testing.T) {
	s := simulate(t, fountain, Options{Workers: 1})
	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)
	require.Len(t, s.Registry().Groups(), 2)

	fall, _ := s.Registry().List("fall")
	require.NoError(t, s.Registry().Graph().Remove(fall))

	st, err := s.Frame(context.Background(), sec(2))
	require.NoError(t, err)
	require.Len(t, s.Registry().Groups(), 1)
	assert.Equal(t, 0, st.Counters.Routed)
	assert.Equal(t, 10, groupOf(t, s, "fountain", "emit").Count())
}

func TestRemoveSystem(t *testing.T) {
	s := simulate(t, fountain, Options{Workers: 1})
	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)

	e, ok := s.Registry().SystemByName("fountain")
	require.True(t, ok)
	s.Registry().RemoveSystem(e)
	assert.Empty(t, s.Registry().Groups())
	assert.Equal(t, 0, s.Registry().SystemCount())
	_, ok = s.Registry().SystemByName("fountain")
	assert.False(t, ok)

	_, err = s.Frame(context.Background(), sec(2))
	require.NoError(t, err)
}

func TestPopulation(t *testing.T) {
	s := simulate(t, fountain, Options{Workers: 1})
	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)

	pop := s.Population(0)
	assert.Equal(t, 1, pop.Systems)
	assert.Equal(t, 2, pop.Groups)
	assert.Equal(t, 10, pop.Particles)
	require.Len(t, pop.Ages, 10)
	for _, a := range pop.Ages {
		assert.GreaterOrEqual(t, a, 0.0)
		assert.Less(t, a, 1.0)
	}

	assert.Len(t, s.Population(5).Ages, 5)
}

const sharedSpeed = `
lists:
  - name: emit
    actions:
      - {type: birth, params: {rate: 200}}
      - {type: speed, name: sp, params: {direction: {y: 1}, magnitude: 2, variation: 0.5, divergence: 0.3}}
      - {type: ageTest, params: {age: 0.2}, to: l1}
  - name: l1
    actions:
      - {ref: sp}
      - {type: ageTest, params: {age: 0.4}, to: l2}
  - name: l2
    actions:
      - {ref: sp}
      - {type: ageTest, params: {age: 0.6}, to: l3}
  - name: l3
    actions:
      - {ref: sp}
systems:
  - {name: s, roots: [emit], importance: 1}
`

func speeds(t *testing.T, s *Simulation, list string) []r3.Vec {
	t.Helper()
	v, ok := channel.Read[r3.Vec](groupOf(t, s, "s", list).View(), channel.Speed)
	if !ok {
		return nil
	}
	out := make([]r3.Vec, v.Count())
	for i := range out {
		out[i] = v.Value(i)
	}
	return out
}

func TestSharedActionDrawsPerGroupStreams(t *testing.T) {
	seq := simulate(t, sharedSpeed, Options{Workers: 1})
	par := simulate(t, sharedSpeed, Options{Workers: 4})
	for i := 1; i <= 8; i++ {
		_, err := seq.Frame(context.Background(), sec(float64(i)*0.1))
		require.NoError(t, err)
		_, err = par.Frame(context.Background(), sec(float64(i)*0.1))
		require.NoError(t, err)
	}

	for _, list := range []string{"emit", "l1", "l2", "l3"} {
		got := speeds(t, par, list)
		assert.NotEmpty(t, got, list)
		assert.Equal(t, speeds(t, seq, list), got, list)
	}

	h, ok := par.Registry().Action("sp")
	require.True(t, ok)
	n, ok := par.Registry().Graph().Get(h)
	require.True(t, ok)
	assert.Equal(t, 4, n.Streams.Len(), "one stream per list of the system")
}

func TestSaveLoad(t *testing.T) {
	a := simulate(t, fountain, Options{Workers: 1})
	for i := 1; i <= 2; i++ {
		_, err := a.Frame(context.Background(), sec(float64(i)))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	require.NoError(t, a.Save(w))
	require.NoError(t, w.Close())

	b := simulate(t, fountain, Options{Workers: 1})
	require.NoError(t, b.Load(archive.NewReader(&buf), nil))
	assert.True(t, b.Time().Equal(sec(2)))
	assert.Equal(t, int64(2), b.Frames())
	assert.Equal(t, 20, groupOf(t, b, "fountain", "fall").Count())

	ea, _ := a.Registry().SystemByName("fountain")
	eb, _ := b.Registry().SystemByName("fountain")
	sa, _, _, _ := a.Registry().System(ea)
	sb, _, _, _ := b.Registry().System(eb)
	assert.Equal(t, sa.Ref.BornCount(), sb.Ref.BornCount())

	sta, err := a.Frame(context.Background(), sec(3))
	require.NoError(t, err)
	stb, err := b.Frame(context.Background(), sec(3))
	require.NoError(t, err)
	assert.Equal(t, sta.Counters, stb.Counters)
	assert.Equal(t, groupOf(t, a, "fountain", "fall").Count(), groupOf(t, b, "fountain", "fall").Count())
}

func TestPerfPhasesRecorded(t *testing.T) {
	perf := telemetry.NewPerfCollector(10)
	s := simulate(t, fountain, Options{Workers: 1, Perf: perf})
	_, err := s.Frame(context.Background(), sec(1))
	require.NoError(t, err)

	stats := perf.Stats()
	for _, phase := range []string{telemetry.PhaseLOD, telemetry.PhaseReconcile, telemetry.PhaseUpdate, telemetry.PhaseTransfer} {
		_, ok := stats.PhaseAvg[phase]
		assert.True(t, ok, phase)
	}
}

func TestOnFrameHook(t *testing.T) {
	perf := telemetry.NewPerfCollector(10)
	var got []FrameStats
	s := simulate(t, fountain, Options{
		Workers: 1,
		Perf:    perf,
		OnFrame: func(fs FrameStats) { got = append(got, fs) },
	})
	for i := 1; i <= 2; i++ {
		_, err := s.Frame(context.Background(), sec(float64(i)))
		require.NoError(t, err)
	}

	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].Counters.Born)
	assert.True(t, got[1].Time.Equal(sec(2)))

	_, ok := perf.Stats().PhaseAvg[telemetry.PhaseTelemetry]
	assert.True(t, ok)
}

func TestShippedScenesBuild(t *testing.T) {
	sc, err := LoadScene("../scenes/fountain.yaml")
	require.NoError(t, err)
	reg, err := sc.Build(ops.NewRegistry(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.SystemCount())

	opts := Options{Budget: 5000, Logger: quiet()}
	s := NewSimulation(reg, opts)
	for i := 1; i <= 30; i++ {
		_, err := s.Frame(context.Background(), sec(float64(i)/30))
		require.NoError(t, err)
	}
	assert.Greater(t, s.Population(0).Particles, 0)
}
