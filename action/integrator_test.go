package action

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

func motionContainer(t *testing.T, n int) *channel.Container {
	t.Helper()
	c := channel.NewContainer()
	meta := channel.Meta{Transferable: true}
	_, _, err := channel.Ensure(c, channel.Time, channel.Times, meta)
	require.NoError(t, err)
	_, _, err = channel.Ensure(c, channel.Position, channel.Vectors, meta)
	require.NoError(t, err)
	_, _, err = channel.Ensure(c, channel.Speed, channel.Vectors, meta)
	require.NoError(t, err)
	_, _, err = channel.Ensure(c, channel.Acceleration, channel.Vectors, meta)
	require.NoError(t, err)
	c.AppendNum(n)
	return c
}

func TestIntegratorKinematics(t *testing.T) {
	c := motionContainer(t, 2)
	speed, _ := channel.Get[r3.Vec](c, channel.Speed, node.Nil)
	acc, _ := channel.Get[r3.Vec](c, channel.Acceleration, node.Nil)
	pos, _ := channel.Get[r3.Vec](c, channel.Position, node.Nil)
	tm, _ := channel.Get[ptime.Time](c, channel.Time, node.Nil)
	speed.SetValue(0, r3.Vec{X: 2})
	acc.SetAll(r3.Vec{Y: -10})

	end := ptime.FromSeconds(1)
	assert.True(t, StandardIntegrator{}.ProceedAll(c, end))

	assert.InDelta(t, 2.0, pos.Value(0).X, 1e-9)
	assert.InDelta(t, -5.0, pos.Value(0).Y, 1e-9)
	assert.InDelta(t, -10.0, speed.Value(1).Y, 1e-9)
	assert.Equal(t, channel.ModeGlobal, tm.Mode())
	assert.True(t, tm.Value(1).Equal(end))
}

func TestIntegratorNeverRewinds(t *testing.T) {
	c := motionContainer(t, 2)
	tm, _ := channel.Get[ptime.Time](c, channel.Time, node.Nil)
	pos, _ := channel.Get[r3.Vec](c, channel.Position, node.Nil)
	speed, _ := channel.Get[r3.Vec](c, channel.Speed, node.Nil)
	speed.SetAll(r3.Vec{X: 1})
	ahead := ptime.FromSeconds(2)
	tm.SetValue(1, ahead)

	StandardIntegrator{}.ProceedAll(c, ptime.FromSeconds(1))
	assert.True(t, tm.Value(1).Equal(ahead))
	assert.Equal(t, 0.0, pos.Value(1).X)
	assert.InDelta(t, 1.0, pos.Value(0).X, 1e-9)
}

func TestIntegratorMaskAndOne(t *testing.T) {
	c := motionContainer(t, 3)
	tm, _ := channel.Get[ptime.Time](c, channel.Time, node.Nil)
	m := channel.MaskFromBools([]bool{false, true, false})
	to := ptime.FromTicks(100)
	StandardIntegrator{}.ProceedMask(c, m, to)
	assert.True(t, tm.Value(1).Equal(to))
	assert.True(t, tm.Value(0).Equal(ptime.Zero))

	StandardIntegrator{}.ProceedOne(c, 2, to)
	assert.True(t, tm.Value(2).Equal(to))
}

func TestIntegratorSpin(t *testing.T) {
	c := motionContainer(t, 1)
	o, _, err := channel.Ensure(c, channel.Orientation, channel.Quats, channel.Meta{})
	require.NoError(t, err)
	o.SetAll(Identity)
	spin, _, err := channel.Ensure(c, channel.Spin, channel.Vectors, channel.Meta{})
	require.NoError(t, err)
	spin.SetAll(r3.Vec{Z: math.Pi})

	StandardIntegrator{}.ProceedAll(c, ptime.FromSeconds(1))
	q := o.Value(0)
	// half turn about Z
	assert.InDelta(t, 0.0, q.Real, 1e-9)
	assert.InDelta(t, 1.0, math.Abs(q.Kmag), 1e-9)
	assert.InDelta(t, 1.0, quat.Abs(q), 1e-9)
}

func TestStreamsPerGroup(t *testing.T) {
	s := NewStreams(42)
	a := StreamKey{System: NewSystemRef("a").ID, List: 1}
	b := StreamKey{System: NewSystemRef("b").ID, List: 1}
	a2 := StreamKey{System: a.System, List: 2}

	ra := s.For(a)
	assert.NotSame(t, ra, s.For(b))
	assert.NotSame(t, ra, s.For(a2), "one system, two lists")
	assert.Same(t, ra, s.For(a))
	assert.Equal(t, 3, s.Len())

	// same seed and key reproduce the sequence
	s2 := NewStreams(42)
	first := ra.Uint64()
	assert.Equal(t, first, s2.For(a).Uint64())
	assert.NotEqual(t, first, s2.For(a2).Uint64())

	s.Forget(a.System)
	assert.Equal(t, 1, s.Len())
}

func TestStateRoundTrip(t *testing.T) {
	g := NewGraph(9)
	h := g.AddOperator("op", nopOp{})
	n, _ := g.Get(h)
	key := StreamKey{System: NewSystemRef("s").ID, List: 5}
	r := n.Streams.For(key)
	r.Uint64()

	st, err := Capture(n, key)
	require.NoError(t, err)
	want := r.Uint64()

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	st.Save(w)
	require.NoError(t, w.Err())

	g2 := NewGraph(9)
	g2.AddList("pad")
	h2 := g2.AddOperator("op", nopOp{})
	n2, _ := g2.Get(h2)

	rd := archive.NewReader(&buf)
	id, err := rd.OpenChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkState, id)
	loaded, err := LoadState(rd, node.Remap{h: h2})
	require.NoError(t, err)
	require.NoError(t, rd.CloseChunk())
	assert.Equal(t, h2, loaded.Action)

	require.NoError(t, loaded.Restore(n2, key))
	assert.Equal(t, want, n2.Streams.For(key).Uint64())
}

func TestConsumeBornClamps(t *testing.T) {
	s := NewSystemRef("s")
	s.SetBornAllowance(5)
	got, first := s.ConsumeBorn(3)
	assert.Equal(t, 3, got)
	assert.Equal(t, int64(0), first)
	got, first = s.ConsumeBorn(10)
	assert.Equal(t, 2, got)
	assert.Equal(t, int64(3), first)
	got, _ = s.ConsumeBorn(1)
	assert.Equal(t, 0, got)
	assert.Equal(t, int64(5), s.BornCount())
}
