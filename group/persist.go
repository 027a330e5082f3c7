package group

import (
	"fmt"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Chunk ids of a saved group.
const (
	ChunkGroup       uint16 = 0x0400
	chunkGroupSync   uint16 = 0x0401
	chunkGroupStatus uint16 = 0x0402
	ChunkStates      uint16 = 0x0410
)

// SaveStates writes one state chunk per action of the list.
func (g *Group) SaveStates(w *archive.Writer) error {
	r, err := g.resolve()
	if err != nil {
		return err
	}
	for _, n := range r.Actions {
		st, err := action.Capture(n, g.streamKey())
		if err != nil {
			return err
		}
		st.Save(w)
	}
	return w.Err()
}

// LoadStates reads state chunks at the current level and applies them to
// the actions they name after remapping. States of actions that no longer
// exist are skipped.
func (g *Group) LoadStates(r *archive.Reader, remap node.Remap) error {
	return r.Chunks(func(id uint16) error {
		if id != action.ChunkState {
			return nil
		}
		st, err := action.LoadState(r, remap)
		if err != nil {
			return err
		}
		n, ok := g.graph.Get(st.Action)
		if !ok {
			return nil
		}
		return st.Restore(n, g.streamKey())
	})
}

// Save writes the sync time, status, container and action states.
func (g *Group) Save(w *archive.Writer) error {
	var stateErr error
	w.Chunk(ChunkGroup, func() {
		w.Chunk(chunkGroupSync, func() {
			w.Int32(g.sync.Tick)
			w.Float32(g.sync.Frac)
		})
		w.Chunk(chunkGroupStatus, func() { w.Uint16(uint16(g.status)) })
		g.container.Save(w)
		w.Chunk(ChunkStates, func() { stateErr = g.SaveStates(w) })
	})
	if stateErr != nil {
		return fmt.Errorf("save group %d: %w", g.ID, stateErr)
	}
	return w.Err()
}

// Load reads the body of a group chunk the caller has opened. The cache
// and any pending surplus are dropped.
func (g *Group) Load(r *archive.Reader, remap node.Remap) error {
	err := r.Chunks(func(id uint16) error {
		switch id {
		case chunkGroupSync:
			tick := r.Int32()
			frac := r.Float32()
			g.sync = ptime.Time{Tick: tick, Frac: frac}
		case chunkGroupStatus:
			g.status = Status(r.Uint16())
		case channel.ChunkContainer:
			c, err := channel.LoadContainer(r, remap)
			if err != nil {
				return err
			}
			g.container = c
		case ChunkStates:
			return g.LoadStates(r, remap)
		}
		return r.Err()
	})
	if err != nil {
		return fmt.Errorf("load group %d: %w", g.ID, err)
	}
	g.surplus = nil
	g.InvalidateCaches(InvalidBoth)
	g.InvalidateActions()
	return nil
}
