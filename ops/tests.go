package ops

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// advance moves satisfied particles to their test time when the caller
// supplied an integrator.
func advance(a *action.Args, result *channel.Mask, at []ptime.Time) {
	if a.Integrator == nil {
		return
	}
	it := channel.NewTrueFalseIterator(result)
	for i := it.FirstTrue(); i < it.Count(); i = it.NextTrue() {
		a.Integrator.ProceedOne(a.Container, i, at[i])
	}
}

// AgeTest is satisfied once a particle is Age seconds old. The
// satisfaction time is the exact crossing, or the particle's own time if
// it was already older.
type AgeTest struct {
	Age       float64 `yaml:"age"`
	Variation float64 `yaml:"variation"`
}

func (t *AgeTest) validate() error {
	if t.Age < 0 {
		return errors.New("negative age")
	}
	return nil
}

func (t *AgeTest) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.BirthTime, channel.Time}, nil
}

func (t *AgeTest) Proceed(a *action.Args, end *ptime.Time, result *channel.Mask, at []ptime.Time) bool {
	c := a.Container
	bt, ok := channel.Get[ptime.Time](c, channel.BirthTime, node.Nil)
	if !ok {
		return true
	}
	tm := times(c)
	for i := range c.Count() {
		life := lifespan(t.Age, t.Variation, bornOf(c, i), uint64(a.Action))
		cross := bt.Value(i).AddTicks(life * ptime.TicksPerSecond)
		if !cross.LessEq(*end) {
			continue
		}
		result.Set(i, true)
		at[i] = clampStep(ptime.Max(cross, timeOf(tm, i, a.Start)), a.Start, *end)
	}
	advance(a, result, at)
	return true
}

// SpeedTest is satisfied when speed rises above Above. The crossing time
// is solved from speed and acceleration.
type SpeedTest struct {
	Above float64 `yaml:"above"`
}

func (t *SpeedTest) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.Speed, channel.Acceleration, channel.Time}, nil
}

// crossing returns the first tau in [0, dt] with |v + a*tau| >= s.
func crossing(v, acc r3.Vec, s, dt float64) (float64, bool) {
	if r3.Norm(v) >= s {
		return 0, true
	}
	// |v + a tau|^2 = s^2
	qa := r3.Dot(acc, acc)
	qb := 2 * r3.Dot(v, acc)
	qc := r3.Dot(v, v) - s*s
	if qa == 0 {
		return 0, false
	}
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return 0, false
	}
	// qc < 0 so exactly one root is positive
	tau := (-qb + math.Sqrt(disc)) / (2 * qa)
	if tau < 0 || tau > dt {
		return 0, false
	}
	return tau, true
}

func (t *SpeedTest) Proceed(a *action.Args, end *ptime.Time, result *channel.Mask, at []ptime.Time) bool {
	c := a.Container
	sp, ok := channel.Get[r3.Vec](c, channel.Speed, node.Nil)
	if !ok {
		return true
	}
	acc, _ := channel.Get[r3.Vec](c, channel.Acceleration, node.Nil)
	tm := times(c)
	for i := range c.Count() {
		ti := timeOf(tm, i, a.Start)
		dt := end.Sub(ti).Seconds()
		if dt < 0 {
			continue
		}
		var ai r3.Vec
		if acc != nil {
			ai = acc.Value(i)
		}
		tau, hit := crossing(sp.Value(i), ai, t.Above, dt)
		if !hit {
			continue
		}
		result.Set(i, true)
		at[i] = clampStep(ti.AddTicks(tau*ptime.TicksPerSecond), a.Start, *end)
	}
	advance(a, result, at)
	return true
}

// SendOut is satisfied by every particle at its current time.
type SendOut struct{}

func (SendOut) Proceed(a *action.Args, end *ptime.Time, result *channel.Mask, at []ptime.Time) bool {
	c := a.Container
	tm := times(c)
	for i := range c.Count() {
		result.Set(i, true)
		at[i] = clampStep(timeOf(tm, i, a.Start), a.Start, *end)
	}
	return true
}

// RandomSplit routes each new particle with probability Fraction. A
// particle is only considered on the pass it is new.
type RandomSplit struct {
	Fraction float64 `yaml:"fraction"`
}

func (t *RandomSplit) validate() error {
	if t.Fraction < 0 || t.Fraction > 1 {
		return errors.New("fraction must be in [0, 1]")
	}
	return nil
}

func (t *RandomSplit) Proceed(a *action.Args, end *ptime.Time, result *channel.Mask, at []ptime.Time) bool {
	c := a.Container
	tm := times(c)
	for _, i := range newParticles(c) {
		if a.Rand.Float64() < t.Fraction {
			result.Set(i, true)
			at[i] = clampStep(timeOf(tm, i, a.Start), a.Start, *end)
		}
	}
	return true
}
