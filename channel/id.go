// Package channel implements the columnar per-particle store: typed channels
// with local, shared and global storage, the Container that keeps them at a
// common particle count, and the bit-block Mask/TrueFalseIterator used to walk
// boolean subsets.
package channel

import (
	"fmt"

	"github.com/pthm-cable/pflow/node"
)

// ID identifies a channel by its read and write interface ids.
type ID struct {
	Read  uint32
	Write uint32
}

func (id ID) String() string {
	return fmt.Sprintf("%08x:%08x", id.Read, id.Write)
}

// Standard channel ids shared by the operator library, the integrator and
// the renderer.
var (
	Amount       = ID{0x70660001, 0x70660002} // pseudo-channel, never stored
	Time         = ID{0x70660011, 0x70660012}
	BirthTime    = ID{0x70660021, 0x70660022}
	BornIndex    = ID{0x70660031, 0x70660032}
	New          = ID{0x70660041, 0x70660042}
	Position     = ID{0x70660051, 0x70660052}
	Speed        = ID{0x70660061, 0x70660062}
	Acceleration = ID{0x70660071, 0x70660072}
	Orientation  = ID{0x70660081, 0x70660082}
	Spin         = ID{0x70660091, 0x70660092}
	Scale        = ID{0x706600a1, 0x706600a2}
	Shape        = ID{0x706600b1, 0x706600b2}
	ShapeTexture = ID{0x706600c1, 0x706600c2}
	Deleted      = ID{0x706600d1, 0x706600d2}
	EventStart   = ID{0x706600e1, 0x706600e2}
)

// Meta holds the ownership attributes of a channel.
type Meta struct {
	// Transferable channels travel with particles that move to another
	// action list; the rest are dropped at the boundary.
	Transferable bool
	// Private channels are only visible to PrivateOwner.
	Private      bool
	PrivateOwner node.Handle
	// Creator initializes values for particles that newly arrive.
	Creator node.Handle
}

// VisibleTo reports whether accessor may read or write a channel with m.
func (m Meta) VisibleTo(accessor node.Handle) bool {
	return !m.Private || m.PrivateOwner == accessor
}

// compatible compares the attributes that decide whether two channels can
// be merged. Creator is bookkeeping and does not affect merging.
func (m Meta) compatible(o Meta) bool {
	return m.Transferable == o.Transferable &&
		m.Private == o.Private &&
		m.PrivateOwner == o.PrivateOwner
}

// Mode is the storage mode of a channel.
type Mode uint8

const (
	ModeLocal  Mode = iota // one value per particle
	ModeShared             // one value per labeled subset
	ModeGlobal             // one value for every particle
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeShared:
		return "shared"
	case ModeGlobal:
		return "global"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}
