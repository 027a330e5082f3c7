// Package action holds the simulation graph: operators and tests that advance
// and route particles, arrows that connect a test to a successor list, and
// action lists that order them.
package action

import (
	"math/rand/v2"

	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Args is what an action sees during one Proceed call. Particles whose
// Time lies in (Start, end] are the ones to act on.
type Args struct {
	Container *channel.Container
	Start     ptime.Time
	System    *SystemRef
	Action    node.Handle
	// Integrator advances particles in time. Tests may only move
	// particles forward when it is non-nil.
	Integrator Integrator
	// Rand is the stream for this action and driving system.
	Rand *rand.Rand

	// Born counts births taken from the allowance during the current pass,
	// so a retried pass can hand them back.
	Born int
}

// ConsumeBorn takes births from the system allowance and records them.
func (a *Args) ConsumeBorn(want int) (granted int, firstBorn int64) {
	granted, firstBorn = a.System.ConsumeBorn(want)
	a.Born += granted
	return granted, firstBorn
}

// Operator mutates channels. It may lower *end if it cannot advance every
// particle that far; the list pass is then re-run with the shorter step.
// Returning false is a non-fatal failure.
type Operator interface {
	Proceed(a *Args, end *ptime.Time) bool
}

// Test evaluates a predicate per particle. It sets result[i] for particles
// that satisfy it and writes the satisfaction time to times[i], which lies
// in (Start, end]. result and times are sized to the container count.
type Test interface {
	Proceed(a *Args, end *ptime.Time, result *channel.Mask, times []ptime.Time) bool
}

// Initializer is implemented by actions that prepare channels before the
// first Proceed of a group.
type Initializer interface {
	Init(a *Args) bool
}

// Fertile is implemented by operators that can create particles from an
// empty container.
type Fertile interface {
	IsFertile() bool
}

// Shrinker is implemented by actions that may lower the step end. A list
// without one never needs the retry snapshot.
type Shrinker interface {
	CanShrink() bool
}

// PreHook runs before the main sweep with read-only access.
type PreHook interface {
	PreUpdate(v channel.View, t ptime.Time)
}

// PostHook runs after the main sweep with read-only access.
type PostHook interface {
	PostUpdate(v channel.View, t ptime.Time)
}

// Usage declares the channels an action reads and writes.
type Usage interface {
	ChannelsUsed() (read, write []channel.ID)
}

// Stateful actions persist a payload alongside their random streams.
type Stateful interface {
	SaveState() []byte
	LoadState(p []byte) error
}

// IsFertile reports whether v is a fertile operator.
func IsFertile(v any) bool {
	f, ok := v.(Fertile)
	return ok && f.IsFertile()
}

// CanShrink reports whether v may lower the step end.
func CanShrink(v any) bool {
	s, ok := v.(Shrinker)
	return ok && s.CanShrink()
}
