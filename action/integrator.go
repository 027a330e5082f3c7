package action

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Integrator advances particles in time from their motion channels. A
// particle already at or past the target time is left alone.
type Integrator interface {
	ProceedAll(c *channel.Container, t ptime.Time) bool
	ProceedMask(c *channel.Container, m *channel.Mask, t ptime.Time) bool
	ProceedOne(c *channel.Container, i int, t ptime.Time) bool
}

// StandardIntegrator moves Position by Speed and Acceleration, rotates
// Orientation by Spin, and sets Time. Missing channels are skipped; only
// Time is required.
type StandardIntegrator struct{}

type motion struct {
	time   *channel.Typed[ptime.Time]
	pos    *channel.Typed[r3.Vec]
	speed  *channel.Typed[r3.Vec]
	acc    *channel.Typed[r3.Vec]
	orient *channel.Typed[quat.Number]
	spin   *channel.Typed[r3.Vec]
}

func lookupMotion(c *channel.Container) (motion, bool) {
	var m motion
	var ok bool
	if m.time, ok = channel.Get[ptime.Time](c, channel.Time, node.Nil); !ok {
		return m, false
	}
	m.pos, _ = channel.Get[r3.Vec](c, channel.Position, node.Nil)
	m.speed, _ = channel.Get[r3.Vec](c, channel.Speed, node.Nil)
	m.acc, _ = channel.Get[r3.Vec](c, channel.Acceleration, node.Nil)
	m.orient, _ = channel.Get[quat.Number](c, channel.Orientation, node.Nil)
	m.spin, _ = channel.Get[r3.Vec](c, channel.Spin, node.Nil)
	return m, true
}

// advance moves particle i to t without touching its Time.
func (m motion) advance(i int, t ptime.Time) bool {
	dt := t.Sub(m.time.Value(i)).Seconds()
	if dt <= 0 {
		return false
	}
	var a r3.Vec
	if m.acc != nil {
		a = m.acc.Value(i)
	}
	if m.speed != nil {
		v := m.speed.Value(i)
		if m.pos != nil {
			p := m.pos.Value(i)
			p = r3.Add(p, r3.Add(r3.Scale(dt, v), r3.Scale(0.5*dt*dt, a)))
			m.pos.SetValue(i, p)
		}
		if m.acc != nil {
			m.speed.SetValue(i, r3.Add(v, r3.Scale(dt, a)))
		}
	}
	if m.orient != nil && m.spin != nil {
		w := m.spin.Value(i)
		if rate := r3.Norm(w); rate > 0 {
			m.orient.SetValue(i, Rotate(m.orient.Value(i), r3.Scale(1/rate, w), rate*dt))
		}
	}
	return true
}

func (StandardIntegrator) ProceedAll(c *channel.Container, t ptime.Time) bool {
	m, ok := lookupMotion(c)
	if !ok {
		return c.Count() == 0
	}
	for i := range c.Count() {
		m.advance(i, t)
	}
	if c.Count() > 0 && allBefore(m.time, t) {
		m.time.SetAll(t)
		return true
	}
	for i := range c.Count() {
		if m.time.Value(i).Less(t) {
			m.time.SetValue(i, t)
		}
	}
	return true
}

func allBefore(ch *channel.Typed[ptime.Time], t ptime.Time) bool {
	for i := range ch.Count() {
		if !ch.Value(i).LessEq(t) {
			return false
		}
	}
	return true
}

func (StandardIntegrator) ProceedMask(c *channel.Container, mask *channel.Mask, t ptime.Time) bool {
	m, ok := lookupMotion(c)
	if !ok {
		return c.Count() == 0
	}
	it := channel.NewTrueFalseIterator(mask)
	for i := it.FirstTrue(); i < it.Count(); i = it.NextTrue() {
		if m.advance(i, t) {
			m.time.SetValue(i, t)
		}
	}
	return true
}

func (StandardIntegrator) ProceedOne(c *channel.Container, i int, t ptime.Time) bool {
	m, ok := lookupMotion(c)
	if !ok {
		return false
	}
	if m.advance(i, t) {
		m.time.SetValue(i, t)
	}
	return true
}

// Rotate turns q by angle radians about the unit axis and renormalizes.
func Rotate(q quat.Number, axis r3.Vec, angle float64) quat.Number {
	s, co := math.Sincos(angle / 2)
	dq := quat.Number{Real: co, Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
	out := quat.Mul(dq, q)
	if n := quat.Abs(out); n > 0 {
		out = quat.Scale(1/n, out)
	}
	return out
}

// Identity is the unrotated orientation.
var Identity = quat.Number{Real: 1}
