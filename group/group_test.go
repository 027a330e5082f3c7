package group

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ops"
	"github.com/pthm-cable/pflow/ptime"
)

func sec(s float64) ptime.Time { return ptime.FromSeconds(s) }

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type counter struct{ calls int }

func (c *counter) Proceed(a *action.Args, end *ptime.Time) bool {
	c.calls++
	return true
}

type failing struct{ calls int }

func (f *failing) Proceed(a *action.Args, end *ptime.Time) bool {
	f.calls++
	return false
}

// halver always wants half the step.
type halver struct{}

func (halver) CanShrink() bool { return true }

func (halver) Proceed(a *action.Args, end *ptime.Time) bool {
	*end = ptime.Lerp(a.Start, *end, 0.5)
	return true
}

type fixture struct {
	graph *action.Graph
	sys   *action.SystemRef
	a, b  node.Handle
	birth node.Handle
	send  node.Handle
	arrow node.Handle
}

// emitter builds list a (birth, sendOut) routed into an empty list b.
func emitter(t *testing.T, rate float64) fixture {
	t.Helper()
	f := fixture{graph: action.NewGraph(1), sys: action.NewSystemRef("sys")}
	f.sys.SetBornAllowance(1000)
	f.a = f.graph.AddList("a")
	f.b = f.graph.AddList("b")
	f.birth = f.graph.AddOperator("birth", &ops.Birth{Rate: rate})
	f.send = f.graph.AddTest("send", ops.SendOut{})
	require.NoError(t, f.graph.Append(f.a, f.birth))
	require.NoError(t, f.graph.Append(f.a, f.send))
	var err error
	f.arrow, err = f.graph.Connect(f.send, f.b)
	require.NoError(t, err)
	return f
}

func (f fixture) group(id int, list node.Handle, opts Options) *Group {
	opts.Logger = quiet()
	return New(id, f.graph, f.sys, list, ptime.Zero, opts)
}

func TestRoutedParticlesMoveToNextList(t *testing.T) {
	f := emitter(t, 10)
	ga := f.group(1, f.a, Options{})
	gb := f.group(2, f.b, Options{})

	require.NoError(t, ga.Update(sec(1)))
	require.NoError(t, gb.Update(sec(1)))
	assert.Equal(t, 0, ga.Count())
	assert.Equal(t, 10, ga.LastStats().Routed)

	out := ga.TakeSurplus()
	require.Len(t, out, 1)
	assert.Equal(t, f.b, out[0].To)
	require.Equal(t, 10, out[0].Particles.Count())
	assert.Empty(t, ga.TakeSurplus())

	require.NoError(t, gb.AppendSurplusContainer(out[0].Particles))
	assert.Equal(t, 0, out[0].Particles.Count())
	require.Equal(t, 10, gb.Count())
	assert.True(t, gb.Container().Consistent())

	nw, ok := channel.Get[bool](gb.Container(), channel.New, node.Nil)
	require.True(t, ok)
	tm, ok := channel.Get[ptime.Time](gb.Container(), channel.Time, node.Nil)
	require.True(t, ok)
	for i := range gb.Count() {
		assert.True(t, nw.Value(i))
		assert.True(t, tm.Value(i).Equal(sec(1)))
	}

	// the next pass clears the flag
	require.NoError(t, gb.Update(sec(1.1)))
	for i := range gb.Count() {
		assert.False(t, nw.Value(i))
	}
}

func TestInactiveArrowStallsParticles(t *testing.T) {
	f := emitter(t, 10)
	require.NoError(t, f.graph.SetArrowActive(f.arrow, false))
	g := f.group(1, f.a, Options{})

	require.NoError(t, g.Update(sec(1)))
	assert.Equal(t, 10, g.Count())
	assert.Empty(t, g.TakeSurplus())
}

func TestShrinkRetriesRefundBirths(t *testing.T) {
	gr := action.NewGraph(1)
	sys := action.NewSystemRef("sys")
	sys.SetBornAllowance(100)
	list := gr.AddList("l")
	require.NoError(t, gr.Append(list, gr.AddOperator("birth", &ops.Birth{Rate: 4})))
	require.NoError(t, gr.Append(list, gr.AddOperator("force", &ops.Force{MaxStep: 0.25})))
	g := New(1, gr, sys, list, ptime.Zero, Options{Logger: quiet()})

	require.NoError(t, g.Update(sec(1)))
	assert.True(t, g.SyncTime().Equal(sec(1)))
	assert.Equal(t, 4, g.LastStats().Substeps)
	assert.Equal(t, 3, g.LastStats().Retries)
	require.Equal(t, 4, g.Count())
	assert.Equal(t, 96, sys.BornAllowance())

	bi, ok := channel.Get[int64](g.Container(), channel.BornIndex, node.Nil)
	require.True(t, ok)
	assert.Equal(t, []int64{4, 8, 11, 12}, bi.Values())

	bt, _ := channel.Get[ptime.Time](g.Container(), channel.BirthTime, node.Nil)
	for i, want := range []float64{0.25, 0.5, 0.75, 1} {
		assert.InDelta(t, want, bt.Value(i).Seconds(), 1e-9)
	}
}

func TestShrinkRetriesAreBounded(t *testing.T) {
	gr := action.NewGraph(1)
	sys := action.NewSystemRef("sys")
	list := gr.AddList("l")
	require.NoError(t, gr.Append(list, gr.AddOperator("halver", halver{})))
	g := New(1, gr, sys, list, ptime.Zero, Options{Logger: quiet(), MaxShrinkRetries: 2, MaxSubsteps: 1})

	require.NoError(t, g.Update(sec(1)))
	assert.Equal(t, 2, g.LastStats().Retries)
	assert.True(t, g.SyncTime().Equal(sec(0.25)))

	ok, at := g.IsSync(sec(1))
	assert.False(t, ok)
	assert.True(t, at.Equal(sec(0.25)))
}

func TestFailingActionSkippedForFrame(t *testing.T) {
	gr := action.NewGraph(1)
	sys := action.NewSystemRef("sys")
	list := gr.AddList("l")
	bad := &failing{}
	good := &counter{}
	require.NoError(t, gr.Append(list, gr.AddOperator("bad", bad)))
	require.NoError(t, gr.Append(list, gr.AddOperator("good", good)))
	require.NoError(t, gr.Append(list, gr.AddOperator("halver", halver{})))
	g := New(1, gr, sys, list, ptime.Zero, Options{Logger: quiet(), MaxShrinkRetries: 1, MaxSubsteps: 3})

	require.NoError(t, g.Update(sec(1)))
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, g.LastStats().Failures)
	assert.Greater(t, good.calls, 1)

	require.NoError(t, g.Update(sec(2)))
	assert.Equal(t, 2, bad.calls)
}

func TestGraphEditsReachGroup(t *testing.T) {
	gr := action.NewGraph(1)
	sys := action.NewSystemRef("sys")
	list := gr.AddList("l")
	g := New(1, gr, sys, list, ptime.Zero, Options{Logger: quiet()})
	require.NoError(t, g.Update(sec(1)))

	c := &counter{}
	require.NoError(t, gr.Append(list, gr.AddOperator("late", c)))
	require.NoError(t, g.Update(sec(2)))
	assert.Equal(t, 1, c.calls)

	g.InvalidateActions()
	require.NoError(t, g.Update(sec(3)))
	assert.Equal(t, 2, c.calls)

	require.NoError(t, gr.Remove(list))
	err := g.Update(sec(4))
	assert.ErrorIs(t, err, ErrListRemoved)
}

func TestActivityIntervalGatesAction(t *testing.T) {
	gr := action.NewGraph(1)
	sys := action.NewSystemRef("sys")
	list := gr.AddList("l")
	c := &counter{}
	h := gr.AddOperator("c", c)
	require.NoError(t, gr.Append(list, h))
	require.NoError(t, gr.SetActive(h, ptime.Interval{Start: sec(2), End: sec(3)}))
	g := New(1, gr, sys, list, ptime.Zero, Options{Logger: quiet()})

	require.NoError(t, g.Update(sec(1)))
	assert.Equal(t, 0, c.calls)
	require.NoError(t, g.Update(sec(2.5)))
	assert.Equal(t, 1, c.calls)
	require.NoError(t, g.Update(sec(4)))
	assert.Equal(t, 2, c.calls)
	require.NoError(t, g.Update(sec(5)))
	assert.Equal(t, 2, c.calls)
}

func TestAppendRejectsParticlesAhead(t *testing.T) {
	f := emitter(t, 10)
	gb := f.group(2, f.b, Options{})

	c := channel.NewContainer()
	tm, _, err := channel.Ensure(c, channel.Time, channel.Times, channel.Meta{Transferable: true})
	require.NoError(t, err)
	c.AppendNum(2)
	tm.SetAll(sec(1))

	err = gb.AppendSurplusContainer(c)
	assert.ErrorIs(t, err, ErrAhead)
	assert.Equal(t, 0, gb.Count())
	assert.Equal(t, 2, c.Count())
}

func TestInvalidationDelayedWhileProceeding(t *testing.T) {
	f := emitter(t, 10)
	require.NoError(t, f.graph.SetArrowActive(f.arrow, false))

	var proceeding atomic.Bool
	var got []Invalidation
	g := f.group(1, f.a, Options{
		Proceeding:   &proceeding,
		OnInvalidate: func(_ *Group, k Invalidation) { got = append(got, k) },
	})

	proceeding.Store(true)
	require.NoError(t, g.Update(sec(1)))
	assert.Empty(t, got)
	assert.Equal(t, InvalidBoth, g.Pending())

	g.Flush()
	assert.Empty(t, got, "flush is held while proceeding")

	proceeding.Store(false)
	g.Flush()
	assert.Equal(t, []Invalidation{InvalidBoth}, got)
	assert.Equal(t, Invalidation(0), g.Pending())

	g.InvalidateContainer(InvalidViewport)
	assert.Equal(t, []Invalidation{InvalidBoth, InvalidViewport}, got)
}

func TestCacheAndRewind(t *testing.T) {
	f := emitter(t, 10)
	require.NoError(t, f.graph.SetArrowActive(f.arrow, false))
	g := f.group(1, f.a, Options{CacheFrames: 3})

	require.NoError(t, g.Update(sec(0.5)))
	require.NoError(t, g.Update(sec(1)))
	assert.Equal(t, 10, g.Count())

	ok, at := g.IsSync(sec(1))
	assert.True(t, ok)
	assert.True(t, at.Equal(sec(1)))
	ok, at = g.IsSync(sec(0.75))
	assert.False(t, ok)
	assert.True(t, at.Equal(sec(0.5)))

	require.NoError(t, g.Update(sec(0.5)))
	assert.Equal(t, 5, g.Count())
	assert.True(t, g.SyncTime().Equal(sec(0.5)))
	require.Len(t, g.CachedTimes(), 1)

	err := g.Update(sec(0.1))
	assert.ErrorIs(t, err, ErrNoCache)

	g.InvalidateCaches(InvalidRender)
	assert.Empty(t, g.CachedTimes())
}

func TestHooksSeeReadOnlyView(t *testing.T) {
	f := emitter(t, 10)
	require.NoError(t, f.graph.SetArrowActive(f.arrow, false))
	stats := ops.NewStats()
	require.NoError(t, f.graph.Append(f.a, f.graph.AddOperator("stats", stats)))
	g := f.group(1, f.a, Options{})

	require.NoError(t, g.PreUpdate(sec(1)))
	require.NoError(t, g.Update(sec(1)))
	require.NoError(t, g.PostUpdate(sec(1)))

	samples := stats.Drain()
	require.Len(t, samples, 1)
	assert.Equal(t, 10, samples[0].Count)
}

func TestSaveLoad(t *testing.T) {
	f := emitter(t, 10)
	require.NoError(t, f.graph.SetArrowActive(f.arrow, false))
	g := f.group(1, f.a, Options{})
	require.NoError(t, g.Update(sec(1)))

	n, ok := f.graph.Get(f.birth)
	require.True(t, ok)
	key := action.StreamKey{System: f.sys.ID, List: f.a}
	n.Streams.For(key).Uint64()
	before, err := n.Streams.Marshal(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	require.NoError(t, g.Save(w))
	require.NoError(t, w.Close())

	n.Streams.For(key).Uint64()

	r := archive.NewReader(&buf)
	id, err := r.OpenChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkGroup, id)
	loaded := f.group(2, f.a, Options{})
	require.NoError(t, loaded.Load(r, nil))
	require.NoError(t, r.CloseChunk())

	assert.Equal(t, 10, loaded.Count())
	assert.True(t, loaded.SyncTime().Equal(sec(1)))
	after, err := n.Streams.Marshal(key)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = r.OpenChunk()
	assert.True(t, errors.Is(err, io.EOF))
}
