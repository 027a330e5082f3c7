package ops

import (
	"hash/fnv"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// meta is the attribute set for public channels an action creates.
func meta(a *action.Args) channel.Meta {
	return channel.Meta{Transferable: true, Creator: a.Action}
}

// times returns the Time channel, or nil if the container has none.
func times(c *channel.Container) *channel.Typed[ptime.Time] {
	tm, _ := channel.Get[ptime.Time](c, channel.Time, node.Nil)
	return tm
}

// timeOf returns the time of particle i, defaulting to the step start.
func timeOf(tm *channel.Typed[ptime.Time], i int, start ptime.Time) ptime.Time {
	if tm == nil {
		return start
	}
	return tm.Value(i)
}

// newParticles returns the particles flagged New, in index order.
func newParticles(c *channel.Container) []int {
	flag, ok := channel.Get[bool](c, channel.New, node.Nil)
	if !ok || c.Count() == 0 {
		return nil
	}
	if flag.Mode() == channel.ModeGlobal {
		if !flag.Value(0) {
			return nil
		}
		out := make([]int, c.Count())
		for i := range out {
			out[i] = i
		}
		return out
	}
	var out []int
	for i := range c.Count() {
		if flag.Value(i) {
			out = append(out, i)
		}
	}
	return out
}

// inStep returns the particles that are not ahead of end.
func inStep(c *channel.Container, end ptime.Time) []int {
	tm := times(c)
	out := make([]int, 0, c.Count())
	for i := range c.Count() {
		if tm == nil || tm.Value(i).LessEq(end) {
			out = append(out, i)
		}
	}
	return out
}

// randInSphere returns a uniform point in the unit ball.
func randInSphere(r *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: r.Float64()*2 - 1, Y: r.Float64()*2 - 1, Z: r.Float64()*2 - 1}
		if r3.Norm2(v) <= 1 {
			return v
		}
	}
}

// variation returns a stable value in [-1, 1) for a born index, so
// per-particle variation survives transfers without a channel.
func variation(born int64, salt uint64) float64 {
	h := fnv.New64a()
	var b [16]byte
	for i := range 8 {
		b[i] = byte(uint64(born) >> (8 * i))
		b[8+i] = byte(salt >> (8 * i))
	}
	h.Write(b[:])
	return float64(h.Sum64()>>11)/float64(1<<53)*2 - 1
}

// bornOf returns the born index of particle i, or i without the channel.
func bornOf(c *channel.Container, i int) int64 {
	_, born := c.ParticleID(i)
	if born < 0 {
		return int64(i)
	}
	return born
}

// clampStep keeps t within [start, end].
func clampStep(t, start, end ptime.Time) ptime.Time {
	if t.LessEq(start) {
		t = start
	}
	return ptime.Min(t, end)
}
