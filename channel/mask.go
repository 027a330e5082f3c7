package channel

import (
	"math/bits"
)

// blockBits is the number of particles per mask word.
const blockBits = 32

// Mask is a packed per-particle bool set. Every mutation bumps Version so
// iterators built over the mask know to rebuild.
type Mask struct {
	n       int
	words   []uint32
	version uint64
}

// NewMask returns an all-false mask over n particles.
func NewMask(n int) *Mask {
	m := &Mask{}
	m.Reset(n)
	return m
}

// MaskFromBools returns a mask with the given values.
func MaskFromBools(b []bool) *Mask {
	m := NewMask(len(b))
	for i, v := range b {
		if v {
			m.words[i/blockBits] |= 1 << uint(i%blockBits)
		}
	}
	return m
}

// Reset resizes the mask to n particles and clears it.
func (m *Mask) Reset(n int) {
	words := (n + blockBits - 1) / blockBits
	if cap(m.words) >= words {
		m.words = m.words[:words]
		clear(m.words)
	} else {
		m.words = make([]uint32, words)
	}
	m.n = n
	m.version++
}

// Len returns the number of particles covered.
func (m *Mask) Len() int { return m.n }

// Version changes whenever a bit changes.
func (m *Mask) Version() uint64 { return m.version }

// Get reports bit i.
func (m *Mask) Get(i int) bool {
	return m.words[i/blockBits]&(1<<uint(i%blockBits)) != 0
}

// Set writes bit i.
func (m *Mask) Set(i int, v bool) {
	if i < 0 || i >= m.n {
		panic("channel: mask index out of range")
	}
	w := &m.words[i/blockBits]
	bit := uint32(1) << uint(i%blockBits)
	if v {
		*w |= bit
	} else {
		*w &^= bit
	}
	m.version++
}

// SetAll writes every bit.
func (m *Mask) SetAll(v bool) {
	if !v {
		clear(m.words)
	} else {
		for i := range m.words {
			m.words[i] = ^uint32(0)
		}
		if tail := m.n % blockBits; tail != 0 {
			m.words[len(m.words)-1] = (1 << uint(tail)) - 1
		}
	}
	m.version++
}

// Or sets every bit that is set in o. Both masks must cover the same count.
func (m *Mask) Or(o *Mask) {
	if o.n != m.n {
		panic("channel: mask length mismatch")
	}
	for i, w := range o.words {
		m.words[i] |= w
	}
	m.version++
}

// AndNot clears every bit that is set in o.
func (m *Mask) AndNot(o *Mask) {
	if o.n != m.n {
		panic("channel: mask length mismatch")
	}
	for i, w := range o.words {
		m.words[i] &^= w
	}
	m.version++
}

// TrueCount returns the number of set bits.
func (m *Mask) TrueCount() int {
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount32(w)
	}
	return n
}

// Indices returns the set bits in ascending order.
func (m *Mask) Indices() []int {
	out := make([]int, 0, m.TrueCount())
	it := NewTrueFalseIterator(m)
	for i := it.FirstTrue(); i < it.Count(); i = it.NextTrue() {
		out = append(out, i)
	}
	return out
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	return &Mask{n: m.n, words: append([]uint32(nil), m.words...), version: m.version}
}
