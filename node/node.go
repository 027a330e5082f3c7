// Package node defines the stable handles used to reference action graph
// nodes without owning them.
package node

// Handle identifies a node in an action graph arena. Handles are never reused
// within one graph, so a handle that no longer resolves is stale.
type Handle uint32

// Nil is the zero handle; it never resolves.
const Nil Handle = 0

// Valid reports whether h is non-nil.
func (h Handle) Valid() bool { return h != Nil }

// Remap translates handles stored in a saved scene to the handles assigned
// when that scene was loaded.
type Remap map[Handle]Handle

// Apply returns the handle h maps to. Unknown handles map to Nil; a nil
// Remap is the identity.
func (r Remap) Apply(h Handle) Handle {
	if r == nil || h == Nil {
		return h
	}
	if to, ok := r[h]; ok {
		return to
	}
	return Nil
}
