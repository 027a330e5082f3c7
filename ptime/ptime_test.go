package ptime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFloatNormalizes(t *testing.T) {
	cases := []struct {
		in   float64
		tick int32
		frac float32
	}{
		{0, 0, 0},
		{1.25, 1, 0.25},
		{1.75, 2, -0.25},
		{-0.75, -1, 0.25},
		{2.5, 3, -0.5},
	}
	for _, tc := range cases {
		got := FromFloat(tc.in)
		assert.Equal(t, tc.tick, got.Tick, "tick for %v", tc.in)
		assert.InDelta(t, tc.frac, got.Frac, 1e-6, "frac for %v", tc.in)
		assert.True(t, got.Frac >= -0.5 && got.Frac < 0.5)
	}
}

func TestAddKeepsSplitPrecision(t *testing.T) {
	// A million tiny steps must land exactly where one big step lands.
	step := FromFloat(0.125)
	acc := Zero
	for i := 0; i < 1_000_000; i++ {
		acc = acc.Add(step)
	}
	assert.Equal(t, int32(125000), acc.Tick)
	assert.InDelta(t, 0, acc.Frac, 1e-6)
}

func TestCompare(t *testing.T) {
	a := FromFloat(10.2)
	b := FromFloat(10.4)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, a.LessEq(a))
	assert.Equal(t, b, Max(a, b))
	assert.Equal(t, a, Min(a, b))
}

func TestSubAndSeconds(t *testing.T) {
	a := FromSeconds(1)
	b := FromSeconds(0.5)
	assert.InDelta(t, 0.5, a.Sub(b).Seconds(), 1e-9)
	assert.Equal(t, int32(TicksPerSecond), a.Tick)
}

func TestInStep(t *testing.T) {
	s, e := FromTicks(0), FromTicks(10)
	assert.False(t, InStep(s, s, e))
	assert.True(t, InStep(e, s, e))
	assert.True(t, InStep(FromTicks(5), s, e))
	assert.False(t, InStep(FromTicks(11), s, e))
}

func TestLerp(t *testing.T) {
	got := Lerp(FromTicks(0), FromTicks(160), 0.25)
	assert.Equal(t, int32(40), got.Tick)
}
