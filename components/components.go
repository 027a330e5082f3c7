// Package components defines the ECS components of a particle system entity.
package components

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// System identifies a particle system and the action lists it drives.
type System struct {
	Ref   *action.SystemRef `inspect:"skip"`
	Name  string            `inspect:"label"`
	Roots []node.Handle     `inspect:"skip"` // lists particles are born into
	Life  ptime.Interval    `inspect:"interval"`
}

// Alive reports whether the system's groups should run at t.
func (s *System) Alive(t ptime.Time) bool {
	return s.Life.Contains(t)
}

// Emitter places a system in the world for level-of-detail decisions.
type Emitter struct {
	Position     r3.Vec  `inspect:"vec"`
	Importance   float64 `inspect:"bar,max:10"`
	MaxParticles int     `inspect:"label"`
}

// LOD holds the particle budget granted to a system this frame.
type LOD struct {
	Benefit   float64 `inspect:"label,fmt:%.3f"`
	Suggested float64 `inspect:"skip"`
	Granted   float64 `inspect:"label,fmt:%.0f"`
	Live      int     `inspect:"label"` // particles across the system's groups
	Allowance int     `inspect:"label"` // births permitted this frame
}
