package lod

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exact takes exactly what it is offered.
type exact struct {
	benefit   float64
	suggested float64
	got       float64
	greedy    bool
}

func (e *exact) Benefit() float64 { return e.benefit }

func (e *exact) SetResource(s, _, _ float64) float64 {
	e.suggested = s
	e.got = s
	return s
}

func (e *exact) IncreaseResource(offer float64) float64 {
	if !e.greedy {
		return 0
	}
	e.got += offer
	return offer
}

// capped wants at most limit.
type capped struct {
	benefit, limit, got float64
}

func (c *capped) Benefit() float64 { return c.benefit }

func (c *capped) SetResource(s, _, _ float64) float64 {
	c.got = min(s, c.limit)
	return c.got
}

func (c *capped) IncreaseResource(offer float64) float64 {
	more := min(offer, c.limit-c.got)
	c.got += more
	return more
}

// overshoot takes more than suggested.
type overshoot struct{ benefit float64 }

func (o *overshoot) Benefit() float64                         { return o.benefit }
func (o *overshoot) SetResource(_, remaining, _ float64) float64 { return remaining * 2 }
func (o *overshoot) IncreaseResource(offer float64) float64     { return offer }

func TestProportionalScenario(t *testing.T) {
	a := &exact{benefit: 1}
	b := &exact{benefit: 2}
	c := &exact{benefit: 7}
	// input order differs from benefit order
	res := Distribute([]Actor{c, a, b}, 100)

	assert.InDelta(t, 10.0, a.suggested, 1e-9)
	assert.InDelta(t, 20.0, b.suggested, 1e-9)
	assert.InDelta(t, 70.0, c.suggested, 1e-9)
	assert.InDelta(t, 100.0, res.Used, 1e-9)
	require.Len(t, res.Allocations, 3)
	assert.Same(t, a, res.Allocations[0].Actor)
	assert.Same(t, c, res.Allocations[2].Actor)
}

func TestLeftoverOfferedInReverse(t *testing.T) {
	low := &capped{benefit: 1, limit: 5}
	high := &capped{benefit: 1, limit: 1000}
	res := Distribute([]Actor{low, high}, 100)
	assert.InDelta(t, 5.0, low.got, 1e-9)
	assert.InDelta(t, 95.0, high.got, 1e-9)
	assert.InDelta(t, 100.0, res.Used, 1e-9)
}

func TestRemainingNeverNegative(t *testing.T) {
	o := &overshoot{benefit: 1}
	late := &exact{benefit: 5}
	res := Distribute([]Actor{o, late}, 50)
	assert.Equal(t, 0.0, late.suggested)
	assert.InDelta(t, 50.0, res.Used, 1e-9)
}

func TestZeroBenefits(t *testing.T) {
	a, b := &exact{}, &exact{greedy: true}
	res := Distribute([]Actor{a, b}, 10)
	assert.Equal(t, 0.0, a.suggested)
	assert.InDelta(t, 10.0, b.got, 1e-9)
	assert.InDelta(t, 10.0, res.Used, 1e-9)

	assert.Equal(t, 0.0, Distribute(nil, 10).Used)
}

func TestConservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for range 200 {
		n := 1 + rng.IntN(12)
		budget := rng.Float64() * 1000
		actors := make([]Actor, n)
		unlimited := make([]Actor, n)
		for i := range actors {
			actors[i] = &capped{benefit: rng.Float64() * 10, limit: rng.Float64() * 200}
			unlimited[i] = &exact{benefit: rng.Float64() * 10, greedy: true}
		}
		res := Distribute(actors, budget)
		assert.LessOrEqual(t, res.Used, budget+1e-9)

		res = Distribute(unlimited, budget)
		assert.InDelta(t, budget, res.Used, 1e-6)
	}
}
