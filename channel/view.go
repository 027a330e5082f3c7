package channel

import "github.com/pthm-cable/pflow/node"

// Reader is read-only access to one channel.
type Reader[T any] interface {
	Count() int
	Value(i int) T
}

// View is a read-only facade over a Container, used by pre/post update
// hooks and the renderer.
type View struct {
	c        *Container
	accessor node.Handle
}

// NewView returns a view of c as seen by accessor.
func NewView(c *Container, accessor node.Handle) View {
	return View{c: c, accessor: accessor}
}

// Count returns the particle count, or 0 for an empty view.
func (v View) Count() int {
	if v.c == nil {
		return 0
	}
	return v.c.count
}

// Has reports whether the channel is present and visible.
func (v View) Has(id ID) bool {
	if v.c == nil {
		return false
	}
	_, ok := v.c.Lookup(id, v.accessor)
	return ok
}

// Read returns a typed reader for id.
func Read[T any](v View, id ID) (Reader[T], bool) {
	if v.c == nil {
		return nil, false
	}
	t, ok := Get[T](v.c, id, v.accessor)
	if !ok {
		return nil, false
	}
	return t, true
}
