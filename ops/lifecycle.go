package ops

import (
	"errors"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// lifespan returns the per-particle lifespan in seconds.
func lifespan(base, spread float64, born int64, salt uint64) float64 {
	return base * (1 + spread*variation(born, salt))
}

// DeleteByAge removes particles older than MaxAge seconds. Variation
// spreads lifespans by up to ±Variation of MaxAge, fixed per particle.
type DeleteByAge struct {
	MaxAge    float64 `yaml:"maxAge"`
	Variation float64 `yaml:"variation"`
}

func (d *DeleteByAge) validate() error {
	if d.MaxAge <= 0 {
		return errors.New("maxAge must be positive")
	}
	if d.Variation < 0 || d.Variation > 1 {
		return errors.New("variation must be in [0, 1]")
	}
	return nil
}

func (d *DeleteByAge) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.BirthTime, channel.Time, channel.BornIndex}, nil
}

func (d *DeleteByAge) Proceed(a *action.Args, end *ptime.Time) bool {
	c := a.Container
	bt, ok := channel.Get[ptime.Time](c, channel.BirthTime, node.Nil)
	if !ok || c.Count() == 0 {
		return true
	}
	tm := times(c)
	m := channel.NewMask(c.Count())
	dead := 0
	for i := range c.Count() {
		at := ptime.Max(timeOf(tm, i, a.Start), *end)
		age := at.Sub(bt.Value(i)).Seconds()
		if age > lifespan(d.MaxAge, d.Variation, bornOf(c, i), uint64(a.Action)) {
			m.Set(i, true)
			dead++
		}
	}
	if dead > 0 {
		c.DeleteMask(m)
	}
	return true
}

// Spawn clones new particles. Each new particle, with Probability, is
// followed by Copies clones carrying fresh born indices. Clones keep the
// New flag so operators later in the list initialize them. Clones are
// drawn from the system's born allowance; the last parents get fewer or
// none once it runs out.
type Spawn struct {
	Copies      int     `yaml:"copies"`
	Probability float64 `yaml:"probability"`
}

func (s *Spawn) validate() error {
	if s.Copies < 0 {
		return errors.New("negative copies")
	}
	return nil
}

func (s *Spawn) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.New}, []channel.ID{channel.BornIndex}
}

func (s *Spawn) Proceed(a *action.Args, end *ptime.Time) bool {
	c := a.Container
	idx := newParticles(c)
	if len(idx) == 0 || s.Copies == 0 {
		return true
	}
	var parents []int
	for _, i := range idx {
		if a.Rand.Float64() < s.Probability {
			parents = append(parents, i)
		}
	}
	extra, next := a.System.ConsumeBorn(len(parents) * s.Copies)
	if extra == 0 {
		return true
	}

	table := make([]int, c.Count())
	for i := range table {
		table[i] = 1
	}
	left := extra
	for _, i := range parents {
		k := min(s.Copies, left)
		table[i] += k
		left -= k
	}
	c.Spawn(table)

	bi, ok := channel.Get[int64](c, channel.BornIndex, node.Nil)
	if !ok {
		return true
	}
	pos := 0
	for _, k := range table {
		for j := range k {
			if j > 0 {
				bi.SetValue(pos, next)
				next++
			}
			pos++
		}
	}
	return true
}
