package ops

import (
	"errors"
	"sync"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Position places new particles uniformly in a ball around Point.
type Position struct {
	Point  r3.Vec  `yaml:"point"`
	Spread float64 `yaml:"spread"`
}

func (p *Position) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.New}, []channel.ID{channel.Position}
}

func (p *Position) Proceed(a *action.Args, end *ptime.Time) bool {
	idx := newParticles(a.Container)
	if len(idx) == 0 {
		return true
	}
	pos, _, err := channel.Ensure(a.Container, channel.Position, channel.Vectors, meta(a))
	if err != nil {
		return false
	}
	for _, i := range idx {
		pos.SetValue(i, r3.Add(p.Point, r3.Scale(p.Spread, randInSphere(a.Rand))))
	}
	return true
}

// Speed gives new particles a velocity along Direction. Variation scales
// the magnitude by up to ±Variation; Divergence adds a random component.
type Speed struct {
	Direction  r3.Vec  `yaml:"direction"`
	Magnitude  float64 `yaml:"magnitude"`
	Variation  float64 `yaml:"variation"`
	Divergence float64 `yaml:"divergence"`
}

func (s *Speed) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.New}, []channel.ID{channel.Speed}
}

func (s *Speed) Proceed(a *action.Args, end *ptime.Time) bool {
	idx := newParticles(a.Container)
	if len(idx) == 0 {
		return true
	}
	sp, _, err := channel.Ensure(a.Container, channel.Speed, channel.Vectors, meta(a))
	if err != nil {
		return false
	}
	dir := s.Direction
	if r3.Norm(dir) > 0 {
		dir = r3.Unit(dir)
	}
	for _, i := range idx {
		mag := s.Magnitude * (1 + s.Variation*(2*a.Rand.Float64()-1))
		v := r3.Scale(mag, dir)
		if s.Divergence > 0 {
			v = r3.Add(v, r3.Scale(s.Divergence*s.Magnitude, randInSphere(a.Rand)))
		}
		sp.SetValue(i, v)
	}
	return true
}

// Force sets a constant acceleration on every particle. A positive
// MaxStep limits how far one pass may advance, lowering the step end.
type Force struct {
	Acceleration r3.Vec  `yaml:"acceleration"`
	MaxStep      float64 `yaml:"maxStep"` // seconds, 0 for no limit
}

func (f *Force) validate() error {
	if f.MaxStep < 0 {
		return errors.New("negative maxStep")
	}
	return nil
}

func (f *Force) CanShrink() bool { return f.MaxStep > 0 }

func (f *Force) ChannelsUsed() (read, write []channel.ID) {
	return nil, []channel.ID{channel.Acceleration}
}

func (f *Force) Proceed(a *action.Args, end *ptime.Time) bool {
	if f.MaxStep > 0 {
		limit := a.Start.AddTicks(f.MaxStep * ptime.TicksPerSecond)
		if limit.Less(*end) {
			*end = limit
		}
	}
	acc, _, err := channel.Ensure(a.Container, channel.Acceleration, channel.Vectors, meta(a))
	if err != nil {
		return false
	}
	if a.Container.Count() > 0 {
		acc.SetAll(f.Acceleration)
	}
	return true
}

// Turbulence adds simplex noise acceleration sampled at each particle's
// position and time.
type Turbulence struct {
	Strength  float64 `yaml:"strength"`
	Frequency float64 `yaml:"frequency"`
	Seed      int64   `yaml:"seed"`

	once  sync.Once
	noise opensimplex.Noise
}

func (t *Turbulence) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.Position, channel.Time}, []channel.ID{channel.Acceleration}
}

// Sample returns the unscaled noise vector at p and time s (seconds).
func (t *Turbulence) Sample(p r3.Vec, s float64) r3.Vec {
	t.once.Do(func() { t.noise = opensimplex.New(t.Seed) })
	f := t.Frequency
	x, y, z := p.X*f, p.Y*f, p.Z*f
	return r3.Vec{
		X: t.noise.Eval3(x, y, z+s),
		Y: t.noise.Eval3(x+31.7, y, z+s),
		Z: t.noise.Eval3(x, y+47.3, z+s),
	}
}

func (t *Turbulence) Proceed(a *action.Args, end *ptime.Time) bool {
	c := a.Container
	if c.Count() == 0 || t.Strength == 0 {
		return true
	}
	pos, ok := channel.Get[r3.Vec](c, channel.Position, node.Nil)
	if !ok {
		return true
	}
	acc, _, err := channel.Ensure(c, channel.Acceleration, channel.Vectors, meta(a))
	if err != nil {
		return false
	}
	tm := times(c)
	for _, i := range inStep(c, *end) {
		n := t.Sample(pos.Value(i), timeOf(tm, i, a.Start).Seconds())
		acc.SetValue(i, r3.Add(acc.Value(i), r3.Scale(t.Strength, n)))
	}
	return true
}

// Spin gives new particles an angular velocity about Axis (a random axis
// when zero) and an unrotated orientation.
type Spin struct {
	Rate      float64 `yaml:"rate"` // radians per second
	Variation float64 `yaml:"variation"`
	Axis      r3.Vec  `yaml:"axis"`
}

func (s *Spin) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.New}, []channel.ID{channel.Spin, channel.Orientation}
}

func (s *Spin) Proceed(a *action.Args, end *ptime.Time) bool {
	idx := newParticles(a.Container)
	if len(idx) == 0 {
		return true
	}
	sp, _, err := channel.Ensure(a.Container, channel.Spin, channel.Vectors, meta(a))
	if err != nil {
		return false
	}
	or, _, err := channel.Ensure(a.Container, channel.Orientation, channel.Quats, meta(a))
	if err != nil {
		return false
	}
	for _, i := range idx {
		axis := s.Axis
		if r3.Norm(axis) == 0 {
			axis = randInSphere(a.Rand)
		}
		if r3.Norm(axis) > 0 {
			axis = r3.Unit(axis)
		}
		rate := s.Rate * (1 + s.Variation*(2*a.Rand.Float64()-1))
		sp.SetValue(i, r3.Scale(rate, axis))
		or.SetValue(i, quat.Number{Real: 1})
	}
	return true
}
