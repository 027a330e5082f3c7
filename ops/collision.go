package ops

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Collider answers read-only hit queries. Hit returns the first time in
// (0, dt] at which a particle moving from p with velocity v and
// acceleration a reaches the surface, and the surface normal there.
type Collider interface {
	Hit(p, v, a r3.Vec, dt float64) (tau float64, normal r3.Vec, ok bool)
}

// Plane is an infinite collider through Point facing Normal. Particles hit
// it when crossing from the front side.
type Plane struct {
	Point  r3.Vec `yaml:"point"`
	Normal r3.Vec `yaml:"normal"`
}

func (pl Plane) Hit(p, v, a r3.Vec, dt float64) (float64, r3.Vec, bool) {
	n := pl.Normal
	if r3.Norm(n) == 0 {
		return 0, r3.Vec{}, false
	}
	n = r3.Unit(n)
	d := r3.Dot(r3.Sub(p, pl.Point), n)
	if d < 0 {
		return 0, n, false
	}
	vn, an := r3.Dot(v, n), r3.Dot(a, n)
	tau, ok := firstRoot(0.5*an, vn, d, dt)
	return tau, n, ok
}

// firstRoot returns the smallest tau in (0, dt] with qa*tau^2 + qb*tau + qc = 0.
func firstRoot(qa, qb, qc, dt float64) (float64, bool) {
	const eps = 1e-12
	best := math.Inf(1)
	try := func(t float64) {
		if t > eps && t <= dt && t < best {
			best = t
		}
	}
	if math.Abs(qa) < eps {
		if qb != 0 {
			try(-qc / qb)
		}
	} else {
		disc := qb*qb - 4*qa*qc
		if disc < 0 {
			return 0, false
		}
		sq := math.Sqrt(disc)
		try((-qb - sq) / (2 * qa))
		try((-qb + sq) / (2 * qa))
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

// CollisionTest is satisfied when a particle hits Collider during the
// step. Satisfied particles are advanced to the hit time. With Bounce set
// their velocity is reflected, scaled by Restitution along the normal.
type CollisionTest struct {
	Plane       Plane   `yaml:"plane"`
	Bounce      bool    `yaml:"bounce"`
	Restitution float64 `yaml:"restitution"`

	// Collider overrides Plane when set.
	Collider Collider `yaml:"-"`
}

func (t *CollisionTest) collider() Collider {
	if t.Collider != nil {
		return t.Collider
	}
	return t.Plane
}

func (t *CollisionTest) ChannelsUsed() (read, write []channel.ID) {
	read = []channel.ID{channel.Position, channel.Speed, channel.Acceleration, channel.Time}
	if t.Bounce {
		write = []channel.ID{channel.Speed}
	}
	return read, write
}

func (t *CollisionTest) Proceed(a *action.Args, end *ptime.Time, result *channel.Mask, at []ptime.Time) bool {
	c := a.Container
	pos, ok := channel.Get[r3.Vec](c, channel.Position, node.Nil)
	if !ok {
		return true
	}
	sp, _ := channel.Get[r3.Vec](c, channel.Speed, node.Nil)
	acc, _ := channel.Get[r3.Vec](c, channel.Acceleration, node.Nil)
	tm := times(c)
	col := t.collider()
	normals := make(map[int]r3.Vec)

	for i := range c.Count() {
		ti := timeOf(tm, i, a.Start)
		dt := end.Sub(ti).Seconds()
		if dt <= 0 {
			continue
		}
		var v, ai r3.Vec
		if sp != nil {
			v = sp.Value(i)
		}
		if acc != nil {
			ai = acc.Value(i)
		}
		tau, n, hit := col.Hit(pos.Value(i), v, ai, dt)
		if !hit {
			continue
		}
		result.Set(i, true)
		at[i] = clampStep(ti.AddTicks(tau*ptime.TicksPerSecond), a.Start, *end)
		normals[i] = n
	}
	advance(a, result, at)

	if t.Bounce && sp != nil && a.Integrator != nil {
		for i, n := range normals {
			v := sp.Value(i)
			vn := r3.Dot(v, n)
			if vn < 0 {
				sp.SetValue(i, r3.Sub(v, r3.Scale((1+t.Restitution)*vn, n)))
			}
		}
	}
	return true
}
