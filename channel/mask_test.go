package channel

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIteratorVisitsEverySetBitOnce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for _, n := range []int{0, 1, 31, 32, 33, 64, 100, 1000} {
		b := make([]bool, n)
		var want []int
		for i := range b {
			if rng.IntN(5) == 0 {
				b[i] = true
				want = append(want, i)
			}
		}
		m := MaskFromBools(b)
		it := NewTrueFalseIterator(m)
		var got []int
		for i := it.FirstTrue(); i < it.Count(); i = it.NextTrue() {
			got = append(got, i)
		}
		assert.Equal(t, want, got, "n=%d", n)
		assert.Equal(t, len(want), m.TrueCount())
	}
}

func TestIteratorBlocks(t *testing.T) {
	m := NewMask(100)
	m.Set(3, true)
	m.Set(70, true)
	m.Set(71, true)
	it := NewTrueFalseIterator(m)
	require.Equal(t, 2, it.TrueBlockCount())
	assert.Equal(t, TrueBlock{Index: 0, Bits: 1 << 3}, it.TrueBlock(0))
	assert.Equal(t, TrueBlock{Index: 2, Bits: 1<<6 | 1<<7}, it.TrueBlock(1))
}

func TestIteratorRebuildsAfterMutation(t *testing.T) {
	m := NewMask(80)
	m.Set(2, true)
	m.Set(40, true)
	it := NewTrueFalseIterator(m)
	assert.Equal(t, 2, it.FirstTrue())

	m.Set(10, true)
	m.Set(40, false)
	m.Set(75, true)
	assert.Equal(t, 10, it.NextTrue())
	assert.Equal(t, 75, it.NextTrue())
	assert.Equal(t, 80, it.NextTrue())
}

func TestEmptyMask(t *testing.T) {
	it := NewTrueFalseIterator(NewMask(0))
	assert.Equal(t, 0, it.FirstTrue())
	assert.Equal(t, 0, it.TrueBlockCount())
}

func TestMaskSetAllTail(t *testing.T) {
	m := NewMask(40)
	m.SetAll(true)
	assert.Equal(t, 40, m.TrueCount())
	m.SetAll(false)
	assert.Equal(t, 0, m.TrueCount())

	o := MaskFromBools([]bool{true, false, true})
	m2 := NewMask(3)
	m2.Or(o)
	assert.Equal(t, []int{0, 2}, m2.Indices())
	m2.AndNot(MaskFromBools([]bool{true, false, false}))
	assert.Equal(t, []int{2}, m2.Indices())
}
