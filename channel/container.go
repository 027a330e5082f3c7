package channel

import (
	"fmt"

	"github.com/pthm-cable/pflow/node"
)

// Container is the per-group particle store. Every channel it holds has
// exactly Count values; count changes go through the container so they hit
// every channel at once.
type Container struct {
	count    int
	channels []Channel
	byIface  map[uint32]int // read and write ids -> channels index
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{byIface: make(map[uint32]int)}
}

// Count returns the number of particles (the Amount pseudo-channel).
func (c *Container) Count() int { return c.count }

// Channels returns the channels in insertion order.
func (c *Container) Channels() []Channel {
	return append([]Channel(nil), c.channels...)
}

// NumChannels returns the number of stored channels.
func (c *Container) NumChannels() int { return len(c.channels) }

// AddChannel stores ch, resized to the current count. It returns false and
// leaves the container untouched when either interface id of ch is already
// taken or names the Amount pseudo-channel.
func (c *Container) AddChannel(ch Channel) bool {
	id := ch.ID()
	if id.Read == Amount.Read || id.Read == Amount.Write || id.Write == Amount.Read || id.Write == Amount.Write {
		return false
	}
	if _, ok := c.byIface[id.Read]; ok {
		return false
	}
	if _, ok := c.byIface[id.Write]; ok {
		return false
	}
	ch.setCount(c.count)
	c.channels = append(c.channels, ch)
	c.byIface[id.Read] = len(c.channels) - 1
	c.byIface[id.Write] = len(c.channels) - 1
	return true
}

// RemoveChannel drops the channel with id. It reports whether one existed.
func (c *Container) RemoveChannel(id ID) bool {
	i, ok := c.byIface[id.Read]
	if !ok || c.channels[i].ID() != id {
		return false
	}
	c.channels = append(c.channels[:i], c.channels[i+1:]...)
	c.reindex()
	return true
}

func (c *Container) reindex() {
	clear(c.byIface)
	for i, ch := range c.channels {
		c.byIface[ch.ID().Read] = i
		c.byIface[ch.ID().Write] = i
	}
}

// Channel returns the channel with id regardless of privacy.
func (c *Container) Channel(id ID) (Channel, bool) {
	i, ok := c.byIface[id.Read]
	if !ok || c.channels[i].ID() != id {
		return nil, false
	}
	return c.channels[i], true
}

// Lookup returns the channel with id if accessor may see it.
func (c *Container) Lookup(id ID, accessor node.Handle) (Channel, bool) {
	ch, ok := c.Channel(id)
	if !ok || !ch.Meta().VisibleTo(accessor) {
		return nil, false
	}
	return ch, true
}

// LookupRead finds a public channel by its read interface id alone.
func (c *Container) LookupRead(read uint32) (Channel, bool) {
	i, ok := c.byIface[read]
	if !ok {
		return nil, false
	}
	ch := c.channels[i]
	if ch.ID().Read != read || ch.Meta().Private {
		return nil, false
	}
	return ch, true
}

// Get returns the typed channel with id visible to accessor.
func Get[T any](c *Container, id ID, accessor node.Handle) (*Typed[T], bool) {
	ch, ok := c.Lookup(id, accessor)
	if !ok {
		return nil, false
	}
	t, ok := ch.(*Typed[T])
	return t, ok
}

// Ensure returns the channel with id, creating it with meta if absent.
// created reports whether a new channel was added.
func Ensure[T any](c *Container, id ID, codec Codec[T], meta Meta) (t *Typed[T], created bool, err error) {
	if ch, ok := c.Channel(id); ok {
		if !ch.Meta().VisibleTo(meta.PrivateOwner) {
			return nil, false, fmt.Errorf("ensure %v: %w", id, ErrCollision)
		}
		t, ok := ch.(*Typed[T])
		if !ok {
			return nil, false, fmt.Errorf("ensure %v: %w", id, ErrTypeMismatch)
		}
		return t, false, nil
	}
	t = NewTyped(id, codec)
	t.meta = meta
	if !c.AddChannel(t) {
		return nil, false, fmt.Errorf("ensure %v: %w", id, ErrCollision)
	}
	return t, true, nil
}

// SetCount resizes every channel to n.
func (c *Container) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	for _, ch := range c.channels {
		ch.setCount(n)
	}
	c.count = n
}

// AppendNum adds n particles and returns the index of the first new one.
func (c *Container) AppendNum(n int) int {
	first := c.count
	if n <= 0 {
		return first
	}
	for _, ch := range c.channels {
		ch.appendNum(n)
	}
	c.count += n
	return first
}

// Delete removes num particles starting at start.
func (c *Container) Delete(start, num int) {
	if start < 0 {
		num += start
		start = 0
	}
	if start+num > c.count {
		num = c.count - start
	}
	if num <= 0 {
		return
	}
	for _, ch := range c.channels {
		ch.deleteRange(start, num)
	}
	c.count -= num
}

// DeleteMask removes the particles whose bit is set and returns the
// remaining count. Survivors keep their relative order.
func (c *Container) DeleteMask(m *Mask) int {
	c.checkMask(m)
	for _, ch := range c.channels {
		ch.deleteMask(m)
	}
	c.count -= m.TrueCount()
	return c.count
}

// Split moves the particles whose bit is set into a new container with the
// same channels. Relative order is kept on both sides.
func (c *Container) Split(m *Mask) *Container {
	c.checkMask(m)
	out := NewContainer()
	moved := m.TrueCount()
	for _, ch := range c.channels {
		part := ch.split(m)
		out.channels = append(out.channels, part)
	}
	out.reindex()
	out.count = moved
	c.count -= moved
	return out
}

// Spawn replaces particle i with table[i] copies of itself; a zero entry
// deletes the particle. Copies stay adjacent to their source position.
func (c *Container) Spawn(table []int) {
	if len(table) != c.count {
		panic(fmt.Sprintf("channel: spawn table length %d != count %d", len(table), c.count))
	}
	total := 0
	for _, k := range table {
		if k < 0 {
			panic("channel: negative spawn count")
		}
		total += k
	}
	for _, ch := range c.channels {
		ch.spawn(table, total)
	}
	c.count = total
}

// Append moves every particle of other to the end of c and leaves other
// empty. Channels present on one side only are filled with unspecified
// values for the other side's particles. If any shared channel is not
// similar, nothing changes and an error is returned.
func (c *Container) Append(other *Container) error {
	if other == c {
		return fmt.Errorf("channel: append container to itself")
	}
	for _, och := range other.channels {
		id := och.ID()
		if ch, ok := c.Channel(id); ok {
			if !ch.IsSimilar(och) {
				return fmt.Errorf("channel: append %v: %w", id, ErrNotSimilar)
			}
			continue
		}
		if _, ok := c.byIface[id.Read]; ok {
			return fmt.Errorf("channel: append %v: %w", id, ErrCollision)
		}
		if _, ok := c.byIface[id.Write]; ok {
			return fmt.Errorf("channel: append %v: %w", id, ErrCollision)
		}
	}

	n := other.count
	for _, och := range other.channels {
		if _, ok := c.Channel(och.ID()); !ok {
			c.AddChannel(och.CloneCore())
		}
	}
	for _, ch := range c.channels {
		och, ok := other.Channel(ch.ID())
		if !ok {
			ch.appendNum(n)
			continue
		}
		if err := ch.appendFrom(och); err != nil {
			// validated above
			panic(err)
		}
	}
	c.count += n
	other.SetCount(0)
	return nil
}

// Clone returns a deep copy.
func (c *Container) Clone() *Container {
	out := NewContainer()
	out.count = c.count
	for _, ch := range c.channels {
		out.channels = append(out.channels, ch.Clone())
	}
	out.reindex()
	return out
}

// DropNonTransferable removes channels that do not travel between lists.
func (c *Container) DropNonTransferable() {
	kept := c.channels[:0]
	for _, ch := range c.channels {
		if ch.Meta().Transferable {
			kept = append(kept, ch)
		}
	}
	clear(c.channels[len(kept):])
	c.channels = kept
	c.reindex()
}

// Consistent reports whether every channel holds Count values.
func (c *Container) Consistent() bool {
	for _, ch := range c.channels {
		if ch.Count() != c.count {
			return false
		}
	}
	return true
}

// ParticleID returns the (index, born index) identity of particle i, or
// born -1 when the container has no born-index channel.
func (c *Container) ParticleID(i int) (index int, born int64) {
	if ch, ok := Get[int64](c, BornIndex, node.Nil); ok {
		return i, ch.Value(i)
	}
	return i, -1
}

func (c *Container) checkMask(m *Mask) {
	if m.Len() != c.count {
		panic(fmt.Sprintf("channel: mask length %d != count %d", m.Len(), c.count))
	}
}
