// Package ptime provides a split-precision simulation time value.
//
// A Time is an integer tick count plus a fractional refinement kept in
// [-0.5, 0.5). Integer and fractional parts are combined separately so that
// long runs of small steps do not accumulate float rounding drift.
package ptime

import (
	"fmt"
	"math"
)

// TicksPerSecond is the number of integer ticks in one second of scene time.
const TicksPerSecond = 4800

// Time is a tick count with a fractional refinement.
type Time struct {
	Tick int32
	Frac float32 // always in [-0.5, 0.5)
}

// Zero is the scene start.
var Zero = Time{}

// FromTicks returns a whole-tick time.
func FromTicks(t int32) Time {
	return Time{Tick: t}
}

// FromFloat converts a fractional tick count.
func FromFloat(ticks float64) Time {
	whole := math.Floor(ticks + 0.5)
	return Time{Tick: int32(whole), Frac: float32(ticks - whole)}.normalize()
}

// FromSeconds converts seconds of scene time.
func FromSeconds(sec float64) Time {
	return FromFloat(sec * TicksPerSecond)
}

// normalize moves whole ticks out of Frac until Frac is in [-0.5, 0.5).
func (t Time) normalize() Time {
	if t.Frac >= 0.5 || t.Frac < -0.5 {
		shift := float32(math.Floor(float64(t.Frac) + 0.5))
		t.Tick += int32(shift)
		t.Frac -= shift
	}
	// float32 rounding at the boundary can leave Frac == 0.5
	if t.Frac >= 0.5 {
		t.Tick++
		t.Frac -= 1
	}
	if t.Frac < -0.5 {
		t.Tick--
		t.Frac += 1
	}
	return t
}

// Add returns t + d.
func (t Time) Add(d Time) Time {
	return Time{Tick: t.Tick + d.Tick, Frac: t.Frac + d.Frac}.normalize()
}

// Sub returns t - d.
func (t Time) Sub(d Time) Time {
	return Time{Tick: t.Tick - d.Tick, Frac: t.Frac - d.Frac}.normalize()
}

// AddTicks adds a fractional number of ticks.
func (t Time) AddTicks(ticks float64) Time {
	return t.Add(FromFloat(ticks))
}

// Ticks returns the time as a float tick count.
func (t Time) Ticks() float64 {
	return float64(t.Tick) + float64(t.Frac)
}

// Seconds returns the time in seconds.
func (t Time) Seconds() float64 {
	return t.Ticks() / TicksPerSecond
}

// Compare returns -1, 0 or 1.
func (t Time) Compare(o Time) int {
	switch {
	case t.Tick < o.Tick:
		return -1
	case t.Tick > o.Tick:
		return 1
	case t.Frac < o.Frac:
		return -1
	case t.Frac > o.Frac:
		return 1
	}
	return 0
}

// Less reports t < o.
func (t Time) Less(o Time) bool { return t.Compare(o) < 0 }

// LessEq reports t <= o.
func (t Time) LessEq(o Time) bool { return t.Compare(o) <= 0 }

// Equal reports t == o.
func (t Time) Equal(o Time) bool { return t.Compare(o) == 0 }

// Min returns the earlier of a and b.
func Min(a, b Time) Time {
	if b.Less(a) {
		return b
	}
	return a
}

// Max returns the later of a and b.
func Max(a, b Time) Time {
	if a.Less(b) {
		return b
	}
	return a
}

// Lerp returns a + (b-a)*f.
func Lerp(a, b Time, f float64) Time {
	return a.AddTicks(b.Sub(a).Ticks() * f)
}

// String formats the time as tick+frac.
func (t Time) String() string {
	return fmt.Sprintf("%d%+.4f", t.Tick, t.Frac)
}

// Interval is a validity or activity range of scene time.
type Interval struct {
	Start, End Time
}

// Forever covers every representable tick.
var Forever = Interval{
	Start: Time{Tick: math.MinInt32},
	End:   Time{Tick: math.MaxInt32},
}

// Contains reports Start <= t <= End.
func (iv Interval) Contains(t Time) bool {
	return iv.Start.LessEq(t) && t.LessEq(iv.End)
}

// InStep reports whether t lies in the half-open step (start, end].
func InStep(t, start, end Time) bool {
	return start.Less(t) && t.LessEq(end)
}
