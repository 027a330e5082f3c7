package channel

import (
	"fmt"
)

// Typed is a column of T values, one logical value per particle.
//
// Storage is chosen per channel:
//   - local keeps one value per particle
//   - shared keeps a small value table and a per-particle slot index
//   - global keeps one value for every particle
//
// Value is identical in every mode; mode changes never change what a reader
// observes.
type Typed[T any] struct {
	id    ID
	meta  Meta
	codec Codec[T]
	count int
	mode  Mode

	local  []T
	table  []T
	index  []int32
	global T
}

// NewTyped returns an empty local channel.
func NewTyped[T any](id ID, codec Codec[T]) *Typed[T] {
	return &Typed[T]{id: id, codec: codec}
}

func (t *Typed[T]) ID() ID         { return t.id }
func (t *Typed[T]) Kind() Kind     { return t.codec.Kind() }
func (t *Typed[T]) Meta() Meta     { return t.meta }
func (t *Typed[T]) SetMeta(m Meta) { t.meta = m }
func (t *Typed[T]) Count() int     { return t.count }
func (t *Typed[T]) Mode() Mode     { return t.mode }

func (t *Typed[T]) check(i int) {
	if i < 0 || i >= t.count {
		panic(fmt.Sprintf("channel %v: index %d out of range [0,%d)", t.id, i, t.count))
	}
}

// Value returns the value of particle i.
func (t *Typed[T]) Value(i int) T {
	t.check(i)
	switch t.mode {
	case ModeShared:
		return t.table[t.index[i]]
	case ModeGlobal:
		return t.global
	}
	return t.local[i]
}

// Values returns a copy of every logical value.
func (t *Typed[T]) Values() []T {
	out := make([]T, t.count)
	for i := range out {
		out[i] = t.Value(i)
	}
	return out
}

// SetValue writes the value of particle i, promoting the channel to local
// storage if needed.
func (t *Typed[T]) SetValue(i int, v T) {
	t.check(i)
	if t.mode != ModeLocal {
		t.promote()
	}
	t.local[i] = v
}

// SetAll writes v for every particle and switches to global storage.
func (t *Typed[T]) SetAll(v T) {
	t.mode = ModeGlobal
	t.global = v
	t.local = nil
	t.table = nil
	t.index = nil
}

// SetSubset writes v for the given particles. A global channel becomes
// shared with two slots; a shared channel gains one slot.
func (t *Typed[T]) SetSubset(indices []int, v T) {
	if len(indices) == 0 {
		return
	}
	for _, i := range indices {
		t.check(i)
	}
	switch t.mode {
	case ModeLocal:
		for _, i := range indices {
			t.local[i] = v
		}
		return
	case ModeGlobal:
		t.table = []T{t.global, v}
		t.index = make([]int32, t.count)
		t.mode = ModeShared
		var zero T
		t.global = zero
	case ModeShared:
		if len(t.table) >= t.count {
			// more slots than particles, local is cheaper
			t.promote()
			for _, i := range indices {
				t.local[i] = v
			}
			return
		}
		t.table = append(t.table, v)
	}
	slot := int32(len(t.table) - 1)
	for _, i := range indices {
		t.index[i] = slot
	}
}

// SetMask writes v for every particle whose bit is set in m.
func (t *Typed[T]) SetMask(m *Mask, v T) {
	t.SetSubset(m.Indices(), v)
}

// promote converts the channel to local storage.
func (t *Typed[T]) promote() {
	local := make([]T, t.count)
	for i := range local {
		local[i] = t.Value(i)
	}
	var zero T
	t.local = local
	t.table = nil
	t.index = nil
	t.global = zero
	t.mode = ModeLocal
}

func (t *Typed[T]) Clone() Channel {
	c := &Typed[T]{
		id:     t.id,
		meta:   t.meta,
		codec:  t.codec,
		count:  t.count,
		mode:   t.mode,
		global: t.global,
	}
	if t.local != nil {
		c.local = append([]T(nil), t.local...)
	}
	if t.table != nil {
		c.table = append([]T(nil), t.table...)
	}
	if t.index != nil {
		c.index = append([]int32(nil), t.index...)
	}
	return c
}

func (t *Typed[T]) CloneCore() Channel {
	return &Typed[T]{id: t.id, meta: t.meta, codec: t.codec}
}

func (t *Typed[T]) IsSimilar(other Channel) bool {
	o, ok := other.(*Typed[T])
	if !ok {
		return false
	}
	return o.id == t.id && o.codec.Kind() == t.codec.Kind() && o.meta.compatible(t.meta)
}

func (t *Typed[T]) setCount(n int) {
	switch {
	case n < t.count:
		t.deleteRange(n, t.count-n)
	case n > t.count:
		t.appendNum(n - t.count)
	}
}

// appendNum adds n particles. Their values are unspecified until written;
// local channels use the zero value, global channels the shared value.
func (t *Typed[T]) appendNum(n int) {
	if n <= 0 {
		return
	}
	switch t.mode {
	case ModeLocal:
		t.local = append(t.local, make([]T, n)...)
	case ModeShared:
		var zero T
		t.table = append(t.table, zero)
		slot := int32(len(t.table) - 1)
		for range n {
			t.index = append(t.index, slot)
		}
	case ModeGlobal:
		if t.count == 0 {
			var zero T
			t.global = zero
		}
	}
	t.count += n
}

func (t *Typed[T]) deleteRange(start, num int) {
	if start < 0 {
		num += start
		start = 0
	}
	if start+num > t.count {
		num = t.count - start
	}
	if num <= 0 {
		return
	}
	switch t.mode {
	case ModeLocal:
		t.local = append(t.local[:start], t.local[start+num:]...)
	case ModeShared:
		t.index = append(t.index[:start], t.index[start+num:]...)
	}
	t.count -= num
}

func (t *Typed[T]) deleteMask(m *Mask) {
	if m.Len() != t.count {
		panic(fmt.Sprintf("channel %v: mask length %d != count %d", t.id, m.Len(), t.count))
	}
	kept := 0
	switch t.mode {
	case ModeLocal:
		for i := 0; i < t.count; i++ {
			if !m.Get(i) {
				t.local[kept] = t.local[i]
				kept++
			}
		}
		clear(t.local[kept:])
		t.local = t.local[:kept]
	case ModeShared:
		for i := 0; i < t.count; i++ {
			if !m.Get(i) {
				t.index[kept] = t.index[i]
				kept++
			}
		}
		t.index = t.index[:kept]
	case ModeGlobal:
		kept = t.count - m.TrueCount()
	}
	t.count = kept
}

func (t *Typed[T]) split(m *Mask) Channel {
	if m.Len() != t.count {
		panic(fmt.Sprintf("channel %v: mask length %d != count %d", t.id, m.Len(), t.count))
	}
	out := &Typed[T]{id: t.id, meta: t.meta, codec: t.codec, mode: t.mode}
	switch t.mode {
	case ModeLocal:
		out.local = make([]T, 0, m.TrueCount())
		for i := 0; i < t.count; i++ {
			if m.Get(i) {
				out.local = append(out.local, t.local[i])
			}
		}
	case ModeShared:
		out.table = append([]T(nil), t.table...)
		out.index = make([]int32, 0, m.TrueCount())
		for i := 0; i < t.count; i++ {
			if m.Get(i) {
				out.index = append(out.index, t.index[i])
			}
		}
	case ModeGlobal:
		out.global = t.global
	}
	out.count = m.TrueCount()
	t.deleteMask(m)
	return out
}

// spawn replaces particle i with table[i] copies of itself.
func (t *Typed[T]) spawn(table []int, total int) {
	switch t.mode {
	case ModeLocal:
		next := make([]T, 0, total)
		for i, k := range table {
			for range k {
				next = append(next, t.local[i])
			}
		}
		t.local = next
	case ModeShared:
		next := make([]int32, 0, total)
		for i, k := range table {
			for range k {
				next = append(next, t.index[i])
			}
		}
		t.index = next
	}
	t.count = total
}

func (t *Typed[T]) appendFrom(other Channel) error {
	o, ok := other.(*Typed[T])
	if !ok || !t.IsSimilar(o) {
		return fmt.Errorf("append %v: %w", t.id, ErrNotSimilar)
	}
	if o.count == 0 {
		return nil
	}
	if t.count == 0 {
		c := o.Clone().(*Typed[T])
		c.meta = t.meta
		*t = *c
		return nil
	}
	switch {
	case t.mode == ModeGlobal && o.mode == ModeGlobal:
		t.table = []T{t.global, o.global}
		t.index = make([]int32, t.count, t.count+o.count)
		for range o.count {
			t.index = append(t.index, 1)
		}
		var zero T
		t.global = zero
		t.mode = ModeShared
	case t.mode == ModeShared && o.mode == ModeGlobal:
		t.table = append(t.table, o.global)
		slot := int32(len(t.table) - 1)
		for range o.count {
			t.index = append(t.index, slot)
		}
	case t.mode == ModeShared && o.mode == ModeShared:
		base := int32(len(t.table))
		t.table = append(t.table, o.table...)
		for _, s := range o.index {
			t.index = append(t.index, base+s)
		}
	default:
		if t.mode != ModeLocal {
			t.promote()
		}
		for i := range o.count {
			t.local = append(t.local, o.Value(i))
		}
	}
	t.count += o.count
	return nil
}
