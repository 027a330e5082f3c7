package ops

import (
	"errors"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/ptime"
)

// Scale sets one size for every particle; the channel stays global.
type Scale struct {
	Value float32 `yaml:"value"`
}

func (s *Scale) ChannelsUsed() (read, write []channel.ID) {
	return nil, []channel.ID{channel.Scale}
}

func (s *Scale) Proceed(a *action.Args, end *ptime.Time) bool {
	sc, _, err := channel.Ensure(a.Container, channel.Scale, channel.Float32s, meta(a))
	if err != nil {
		return false
	}
	if a.Container.Count() == 0 {
		return true
	}
	if sc.Mode() != channel.ModeGlobal || sc.Value(0) != s.Value {
		sc.SetAll(s.Value)
	}
	return true
}

// Shape assigns each new particle one of Shapes at random. Particles that
// share a shape share a slot, so the channel stays in shared storage.
type Shape struct {
	Shapes []int32 `yaml:"shapes"`
}

func (s *Shape) validate() error {
	if len(s.Shapes) == 0 {
		return errors.New("shapes must not be empty")
	}
	return nil
}

func (s *Shape) ChannelsUsed() (read, write []channel.ID) {
	return []channel.ID{channel.New}, []channel.ID{channel.Shape}
}

func (s *Shape) Proceed(a *action.Args, end *ptime.Time) bool {
	if len(s.Shapes) == 0 {
		return false
	}
	c := a.Container
	sh, created, err := channel.Ensure(c, channel.Shape, channel.Int32s, meta(a))
	if err != nil {
		return false
	}
	if created && c.Count() > 0 {
		sh.SetAll(s.Shapes[0])
	}
	idx := newParticles(c)
	if len(idx) == 0 {
		return true
	}
	if sh.Mode() == channel.ModeLocal && sh.Count() == len(idx) {
		// every particle is new; start from a shared layout
		sh.SetAll(s.Shapes[0])
	}
	buckets := make([][]int, len(s.Shapes))
	for _, i := range idx {
		k := a.Rand.IntN(len(s.Shapes))
		buckets[k] = append(buckets[k], i)
	}
	for k, b := range buckets {
		sh.SetSubset(b, s.Shapes[k])
	}
	return true
}
