package channel

import (
	"fmt"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/node"
)

// Chunk ids. Readers skip ids they do not know.
const (
	ChunkContainer   uint16 = 0x0100
	chunkAmount      uint16 = 0x0101
	ChunkChannel     uint16 = 0x0200
	chunkChannelHead uint16 = 0x0201
	chunkChannelMeta uint16 = 0x0202
	chunkLocal       uint16 = 0x0210
	chunkShared      uint16 = 0x0211
	chunkGlobal      uint16 = 0x0212
)

// WriteChannel writes ch as one channel chunk.
func WriteChannel(w *archive.Writer, ch Channel) {
	w.Chunk(ChunkChannel, func() { ch.save(w) })
}

// ReadChannel reads the body of a channel chunk the caller has opened,
// translating stored node handles through remap.
func ReadChannel(r *archive.Reader, remap node.Remap) (Channel, error) {
	var ch Channel
	count := 0
	err := r.Chunks(func(id uint16) error {
		switch id {
		case chunkChannelHead:
			kind := Kind(r.Uint32())
			cid := ID{Read: r.Uint32(), Write: r.Uint32()}
			count = int(r.Uint32())
			if r.Err() != nil {
				return r.Err()
			}
			c, ok := newByKind(kind, cid)
			if !ok {
				return fmt.Errorf("channel %v: unknown kind %d", cid, kind)
			}
			ch = c
		case chunkChannelMeta:
			if ch == nil {
				return fmt.Errorf("channel: meta before header")
			}
			m := Meta{
				Transferable: r.Bool(),
				Private:      r.Bool(),
				PrivateOwner: node.Handle(r.Uint32()),
				Creator:      node.Handle(r.Uint32()),
			}
			ch.SetMeta(remapMeta(m, remap))
		default:
			if ch != nil {
				ch.loadData(id, r)
			}
		}
		return r.Err()
	})
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("channel: missing header")
	}
	if ch.Count() != count {
		// data chunk absent or short; keep the recorded count
		ch.setCount(count)
	}
	return ch, nil
}

func (t *Typed[T]) save(w *archive.Writer) {
	w.Chunk(chunkChannelHead, func() {
		w.Uint32(uint32(t.codec.Kind()))
		w.Uint32(t.id.Read)
		w.Uint32(t.id.Write)
		w.Uint32(uint32(t.count))
	})
	w.Chunk(chunkChannelMeta, func() {
		w.Bool(t.meta.Transferable)
		w.Bool(t.meta.Private)
		w.Uint32(uint32(t.meta.PrivateOwner))
		w.Uint32(uint32(t.meta.Creator))
	})
	switch t.mode {
	case ModeLocal:
		w.Chunk(chunkLocal, func() {
			w.Uint32(uint32(len(t.local)))
			for _, v := range t.local {
				t.codec.Write(w, v)
			}
		})
	case ModeShared:
		w.Chunk(chunkShared, func() {
			w.Uint32(uint32(len(t.table)))
			for _, v := range t.table {
				t.codec.Write(w, v)
			}
			w.Uint32(uint32(len(t.index)))
			for _, s := range t.index {
				w.Int32(s)
			}
		})
	case ModeGlobal:
		w.Chunk(chunkGlobal, func() {
			w.Uint32(uint32(t.count))
			t.codec.Write(w, t.global)
		})
	}
}

func (t *Typed[T]) loadData(id uint16, r *archive.Reader) {
	switch id {
	case chunkLocal:
		n := int(r.Uint32())
		local := make([]T, 0, min(n, 1<<16))
		for range n {
			if r.Err() != nil {
				return
			}
			local = append(local, t.codec.Read(r))
		}
		t.mode, t.local, t.table, t.index, t.count = ModeLocal, local, nil, nil, n
	case chunkShared:
		nt := int(r.Uint32())
		table := make([]T, 0, min(nt, 1<<16))
		for range nt {
			if r.Err() != nil {
				return
			}
			table = append(table, t.codec.Read(r))
		}
		ni := int(r.Uint32())
		index := make([]int32, 0, min(ni, 1<<16))
		for range ni {
			s := r.Int32()
			if r.Err() != nil {
				return
			}
			if s < 0 || int(s) >= nt {
				s = 0
			}
			index = append(index, s)
		}
		if nt == 0 && ni > 0 {
			var zero T
			table = []T{zero}
		}
		t.mode, t.local, t.table, t.index, t.count = ModeShared, nil, table, index, ni
	case chunkGlobal:
		n := int(r.Uint32())
		v := t.codec.Read(r)
		t.mode, t.local, t.table, t.index, t.count, t.global = ModeGlobal, nil, nil, nil, n, v
	}
}

// Save writes the container as one container chunk.
func (c *Container) Save(w *archive.Writer) {
	w.Chunk(ChunkContainer, func() {
		w.Chunk(chunkAmount, func() { w.Uint32(uint32(c.count)) })
		for _, ch := range c.channels {
			WriteChannel(w, ch)
		}
	})
}

// LoadContainer reads the body of a container chunk the caller has opened.
// Channels whose count disagrees with the stored amount are resized.
func LoadContainer(r *archive.Reader, remap node.Remap) (*Container, error) {
	c := NewContainer()
	count := 0
	var channels []Channel
	err := r.Chunks(func(id uint16) error {
		switch id {
		case chunkAmount:
			count = int(r.Uint32())
		case ChunkChannel:
			ch, err := ReadChannel(r, remap)
			if err != nil {
				return err
			}
			channels = append(channels, ch)
		}
		return r.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load container: %w", err)
	}
	c.count = count
	for _, ch := range channels {
		if !c.AddChannel(ch) {
			return nil, fmt.Errorf("load container: %v: %w", ch.ID(), ErrCollision)
		}
	}
	return c, nil
}
