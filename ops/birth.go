package ops

import (
	"errors"
	"math"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/ptime"
)

// Birth emits particles at a fixed rate between From and To seconds. The
// emission count is a pure function of time, so re-running a step after a
// shrink emits the same particles. Births beyond the system's allowance are
// dropped.
type Birth struct {
	Rate   float64 `yaml:"rate"`   // particles per second
	Amount int     `yaml:"amount"` // total over [From, To]; overrides Rate
	From   float64 `yaml:"from"`
	To     float64 `yaml:"to"`    // 0 means no end
	Total  int     `yaml:"total"` // cap on emitted particles, 0 for none
}

func (b *Birth) validate() error {
	if b.Amount > 0 && b.To <= b.From {
		return errors.New("amount needs to after from")
	}
	if b.Rate < 0 || b.Amount < 0 || b.Total < 0 {
		return errors.New("negative rate, amount or total")
	}
	return nil
}

func (b *Birth) IsFertile() bool { return true }

func (b *Birth) rate() float64 {
	if b.Amount > 0 {
		return float64(b.Amount) / (b.To - b.From)
	}
	return b.Rate
}

// emitted returns how many particles have been born by t.
func (b *Birth) emitted(t ptime.Time) int {
	s := t.Sub(ptime.FromSeconds(b.From)).Seconds()
	if s < 0 {
		return 0
	}
	if b.To > b.From {
		s = math.Min(s, b.To-b.From)
	}
	n := int(math.Floor(s*b.rate() + 1e-9))
	if b.Amount > 0 {
		n = min(n, b.Amount)
	}
	if b.Total > 0 {
		n = min(n, b.Total)
	}
	return n
}

func (b *Birth) ChannelsUsed() (read, write []channel.ID) {
	return nil, []channel.ID{channel.Time, channel.BirthTime, channel.BornIndex, channel.New}
}

func (b *Birth) Init(a *action.Args) bool {
	_, _, _, _, err := b.channels(a)
	return err == nil
}

func (b *Birth) channels(a *action.Args) (tm, bt *channel.Typed[ptime.Time], bi *channel.Typed[int64], nw *channel.Typed[bool], err error) {
	c := a.Container
	if tm, _, err = channel.Ensure(c, channel.Time, channel.Times, meta(a)); err != nil {
		return
	}
	if bt, _, err = channel.Ensure(c, channel.BirthTime, channel.Times, meta(a)); err != nil {
		return
	}
	if bi, _, err = channel.Ensure(c, channel.BornIndex, channel.Int64s, meta(a)); err != nil {
		return
	}
	nw, _, err = channel.Ensure(c, channel.New, channel.Bools, meta(a))
	return
}

func (b *Birth) Proceed(a *action.Args, end *ptime.Time) bool {
	rate := b.rate()
	if rate <= 0 {
		return true
	}
	k0 := b.emitted(a.Start)
	want := b.emitted(*end) - k0
	if want <= 0 {
		return true
	}
	granted, born := a.ConsumeBorn(want)
	if granted == 0 {
		return true
	}
	tm, bt, bi, nw, err := b.channels(a)
	if err != nil {
		return false
	}
	from := ptime.FromSeconds(b.From)
	first := a.Container.AppendNum(granted)
	for j := range granted {
		at := from.AddTicks(float64(k0+j+1) / rate * ptime.TicksPerSecond)
		at = clampStep(at, a.Start, *end)
		i := first + j
		tm.SetValue(i, at)
		bt.SetValue(i, at)
		bi.SetValue(i, born+int64(j))
		nw.SetValue(i, true)
	}
	return true
}
