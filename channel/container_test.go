package channel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/node"
)

func bornContainer(t *testing.T, born ...int64) (*Container, *Typed[int64]) {
	t.Helper()
	c := NewContainer()
	ch, created, err := Ensure(c, BornIndex, Int64s, Meta{Transferable: true})
	require.NoError(t, err)
	require.True(t, created)
	c.AppendNum(len(born))
	for i, b := range born {
		ch.SetValue(i, b)
	}
	return c, ch
}

func TestSplitKeepsOrder(t *testing.T) {
	c, born := bornContainer(t, 10, 11, 12)
	m := MaskFromBools([]bool{false, true, false})

	out := c.Split(m)

	require.Equal(t, 1, out.Count())
	outBorn, ok := Get[int64](out, BornIndex, node.Nil)
	require.True(t, ok)
	assert.Equal(t, int64(11), outBorn.Value(0))

	require.Equal(t, 2, c.Count())
	assert.Equal(t, int64(10), born.Value(0))
	assert.Equal(t, int64(12), born.Value(1))
	assert.True(t, c.Consistent())
	assert.True(t, out.Consistent())
}

func TestSplitMergeRoundTrip(t *testing.T) {
	c, _ := bornContainer(t, 0, 1, 2, 3, 4, 5, 6)
	pos, _, err := Ensure(c, Position, Vectors, Meta{Transferable: true})
	require.NoError(t, err)
	for i := range c.Count() {
		pos.SetValue(i, r3.Vec{X: float64(i)})
	}
	scale, _, err := Ensure(c, Scale, Float32s, Meta{Transferable: true})
	require.NoError(t, err)
	scale.SetAll(2)

	m := MaskFromBools([]bool{true, false, true, true, false, false, true})
	out := c.Split(m)
	require.NoError(t, c.Append(out))
	assert.Equal(t, 0, out.Count())
	require.Equal(t, 7, c.Count())

	born, _ := Get[int64](c, BornIndex, node.Nil)
	var got []int64
	for i := range c.Count() {
		got = append(got, born.Value(i))
		assert.Equal(t, float32(2), scale.Value(i))
		assert.Equal(t, float64(born.Value(i)), pos.Value(i).X)
	}
	assert.ElementsMatch(t, []int64{0, 1, 2, 3, 4, 5, 6}, got)
	assert.Equal(t, []int64{1, 4, 5, 0, 2, 3, 6}, got)
}

func TestAddChannelCollision(t *testing.T) {
	c, _ := bornContainer(t, 1, 2)
	assert.False(t, c.AddChannel(NewTyped(BornIndex, Int64s)))
	assert.False(t, c.AddChannel(NewTyped(ID{Read: BornIndex.Write, Write: 0x1234}, Int32s)))
	assert.False(t, c.AddChannel(NewTyped(Amount, Int32s)))
	assert.Equal(t, 1, c.NumChannels())

	assert.True(t, c.AddChannel(NewTyped(Speed, Vectors)))
	ch, ok := c.Channel(Speed)
	require.True(t, ok)
	assert.Equal(t, 2, ch.Count())
}

func TestAmountInvariantAcrossMutations(t *testing.T) {
	c, _ := bornContainer(t, 1, 2, 3, 4)
	_, _, err := Ensure(c, Time, Times, Meta{})
	require.NoError(t, err)
	flag, _, err := Ensure(c, New, Bools, Meta{})
	require.NoError(t, err)
	flag.SetAll(true)

	c.AppendNum(3)
	assert.Equal(t, 7, c.Count())
	assert.True(t, c.Consistent())

	c.Delete(1, 2)
	assert.Equal(t, 5, c.Count())
	assert.True(t, c.Consistent())

	assert.Equal(t, 3, c.DeleteMask(MaskFromBools([]bool{true, false, true, false, false})))
	assert.True(t, c.Consistent())

	c.Spawn([]int{0, 3, 1})
	assert.Equal(t, 4, c.Count())
	assert.True(t, c.Consistent())

	c.SetCount(0)
	assert.Equal(t, 0, c.Count())
	assert.True(t, c.Consistent())
}

func TestSpawnCopiesStayAdjacent(t *testing.T) {
	c, born := bornContainer(t, 5, 6, 7)
	c.Spawn([]int{2, 0, 1})
	require.Equal(t, 3, c.Count())
	assert.Equal(t, []int64{5, 5, 7}, born.Values())
}

func TestAppendRejectsDissimilar(t *testing.T) {
	a, _ := bornContainer(t, 1)
	b := NewContainer()
	_, _, err := Ensure(b, BornIndex, Int32s, Meta{})
	require.NoError(t, err)
	b.AppendNum(2)

	err = a.Append(b)
	assert.ErrorIs(t, err, ErrNotSimilar)
	assert.Equal(t, 1, a.Count())
	assert.Equal(t, 2, b.Count())
}

func TestAppendAddsMissingChannels(t *testing.T) {
	a, _ := bornContainer(t, 1, 2)
	b, _ := bornContainer(t, 3)
	sp, _, err := Ensure(b, Speed, Vectors, Meta{Transferable: true})
	require.NoError(t, err)
	sp.SetValue(0, r3.Vec{Y: 9})

	require.NoError(t, a.Append(b))
	require.Equal(t, 3, a.Count())
	got, ok := Get[r3.Vec](a, Speed, node.Nil)
	require.True(t, ok)
	assert.Equal(t, 9.0, got.Value(2).Y)
	assert.True(t, a.Consistent())
}

func TestPrivateChannelVisibility(t *testing.T) {
	c, _ := bornContainer(t, 1)
	owner := node.Handle(4)
	_, _, err := Ensure(c, EventStart, Times, Meta{Private: true, PrivateOwner: owner})
	require.NoError(t, err)

	_, ok := c.Lookup(EventStart, node.Nil)
	assert.False(t, ok)
	_, ok = c.Lookup(EventStart, owner)
	assert.True(t, ok)
	_, ok = c.LookupRead(EventStart.Read)
	assert.False(t, ok)

	_, _, err = Ensure(c, EventStart, Times, Meta{})
	assert.ErrorIs(t, err, ErrCollision)
}

func TestDropNonTransferable(t *testing.T) {
	c, _ := bornContainer(t, 1, 2)
	_, _, err := Ensure(c, EventStart, Times, Meta{})
	require.NoError(t, err)
	c.DropNonTransferable()
	assert.Equal(t, 1, c.NumChannels())
	_, ok := c.Channel(EventStart)
	assert.False(t, ok)
}

func TestContainerSaveLoadRemapsOwners(t *testing.T) {
	c, _ := bornContainer(t, 7, 8, 9)
	sh, _, err := Ensure(c, Shape, Int32s, Meta{Private: true, PrivateOwner: 3, Creator: 3})
	require.NoError(t, err)
	sh.SetAll(1)
	sh.SetSubset([]int{1}, 4)
	require.Equal(t, ModeShared, sh.Mode())

	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	c.Save(w)
	require.NoError(t, w.Err())

	r := archive.NewReader(&buf)
	id, err := r.OpenChunk()
	require.NoError(t, err)
	require.Equal(t, ChunkContainer, id)
	got, err := LoadContainer(r, node.Remap{3: 30})
	require.NoError(t, err)
	require.NoError(t, r.CloseChunk())

	require.Equal(t, 3, got.Count())
	born, ok := Get[int64](got, BornIndex, node.Nil)
	require.True(t, ok)
	assert.Equal(t, []int64{7, 8, 9}, born.Values())

	shape, ok := Get[int32](got, Shape, 30)
	require.True(t, ok)
	assert.Equal(t, ModeShared, shape.Mode())
	assert.Equal(t, []int32{1, 4, 1}, shape.Values())
	assert.Equal(t, node.Handle(30), shape.Meta().Creator)
}

func TestViewIsReadOnlyFacade(t *testing.T) {
	c, _ := bornContainer(t, 4, 5)
	v := NewView(c, node.Nil)
	assert.Equal(t, 2, v.Count())
	assert.True(t, v.Has(BornIndex))
	rd, ok := Read[int64](v, BornIndex)
	require.True(t, ok)
	assert.Equal(t, int64(5), rd.Value(1))

	_, ok = Read[float32](v, BornIndex)
	assert.False(t, ok)
	assert.Equal(t, 0, View{}.Count())
}

func TestParticleID(t *testing.T) {
	c, _ := bornContainer(t, 40, 41)
	i, born := c.ParticleID(1)
	assert.Equal(t, 1, i)
	assert.Equal(t, int64(41), born)

	_, born = NewContainer().ParticleID(0)
	assert.Equal(t, int64(-1), born)
}
