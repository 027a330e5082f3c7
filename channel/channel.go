package channel

import (
	"errors"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/node"
)

var (
	// ErrNotSimilar is returned when two channels cannot be merged.
	ErrNotSimilar = errors.New("channel: channels are not similar")
	// ErrTypeMismatch is returned when a channel exists with another value type.
	ErrTypeMismatch = errors.New("channel: value type mismatch")
	// ErrCollision is returned when an interface id is already taken.
	ErrCollision = errors.New("channel: interface id collision")
)

// Channel is the type-erased view of a Typed column. Count-changing
// operations are unexported: only a Container may change a channel's count,
// which keeps every channel in step with the container's Amount.
type Channel interface {
	ID() ID
	Kind() Kind
	Meta() Meta
	SetMeta(Meta)
	Count() int
	Mode() Mode

	// Clone returns a deep copy including values.
	Clone() Channel
	// CloneCore returns an empty channel with the same id, type and meta.
	CloneCore() Channel
	// IsSimilar compares type and meta, never values.
	IsSimilar(other Channel) bool

	setCount(n int)
	appendNum(n int)
	deleteRange(start, num int)
	deleteMask(m *Mask)
	split(m *Mask) Channel
	spawn(table []int, total int)
	appendFrom(other Channel) error

	save(w *archive.Writer)
	loadData(id uint16, r *archive.Reader)
}

// remapMeta translates the handles stored in m.
func remapMeta(m Meta, remap node.Remap) Meta {
	m.PrivateOwner = remap.Apply(m.PrivateOwner)
	m.Creator = remap.Apply(m.Creator)
	return m
}
