package channel

// TrueBlock is one non-empty 32-particle block of a mask.
type TrueBlock struct {
	Index int // block number; particle = Index*32 + bit
	Bits  uint32
}

// TrueFalseIterator walks the set bits of a Mask. The compact list of
// non-empty blocks is rebuilt lazily whenever the mask version changes, so a
// walk continues correctly if bits are flipped mid-iteration.
type TrueFalseIterator struct {
	mask    *Mask
	version uint64
	built   bool
	blocks  []TrueBlock

	cursor int // position in blocks
	last   int // last particle returned, -1 before the walk
}

// NewTrueFalseIterator returns an iterator over m.
func NewTrueFalseIterator(m *Mask) *TrueFalseIterator {
	return &TrueFalseIterator{mask: m, last: -1}
}

func (it *TrueFalseIterator) refresh() bool {
	if it.built && it.version == it.mask.version {
		return false
	}
	it.blocks = it.blocks[:0]
	for i, w := range it.mask.words {
		if w != 0 {
			it.blocks = append(it.blocks, TrueBlock{Index: i, Bits: w})
		}
	}
	it.version = it.mask.version
	it.built = true
	return true
}

// Count is the end sentinel: FirstTrue and NextTrue return it when exhausted.
func (it *TrueFalseIterator) Count() int { return it.mask.n }

// TrueBlockCount returns the number of blocks with at least one set bit.
func (it *TrueFalseIterator) TrueBlockCount() int {
	it.refresh()
	return len(it.blocks)
}

// TrueBlock returns the i-th non-empty block.
func (it *TrueFalseIterator) TrueBlock(i int) TrueBlock {
	it.refresh()
	return it.blocks[i]
}

// FirstTrue restarts the walk and returns the first set particle, or Count.
func (it *TrueFalseIterator) FirstTrue() int {
	it.refresh()
	it.cursor = 0
	it.last = -1
	return it.scan()
}

// NextTrue returns the next set particle after the previous one, or Count.
func (it *TrueFalseIterator) NextTrue() int {
	if it.refresh() {
		// blocks moved; find the block holding the resume point
		it.cursor = 0
		for it.cursor < len(it.blocks) && (it.blocks[it.cursor].Index+1)*blockBits <= it.last+1 {
			it.cursor++
		}
	}
	return it.scan()
}

func (it *TrueFalseIterator) scan() int {
	for it.cursor < len(it.blocks) {
		b := it.blocks[it.cursor]
		base := b.Index * blockBits
		bit := 0
		if it.last >= base {
			bit = it.last - base + 1
		}
		for ; bit < blockBits; bit++ {
			if b.Bits&(1<<uint(bit)) != 0 {
				it.last = base + bit
				return it.last
			}
		}
		it.cursor++
	}
	it.last = it.mask.n
	return it.mask.n
}
