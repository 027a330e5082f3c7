package scene

import (
	"fmt"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/group"
	"github.com/pthm-cable/pflow/node"
	"github.com/pthm-cable/pflow/ptime"
)

// Chunk ids of a saved simulation.
const (
	ChunkScene       uint16 = 0x0500
	chunkSceneTime   uint16 = 0x0501
	chunkSystem      uint16 = 0x0510
	chunkSystemName  uint16 = 0x0511
	chunkSystemBorn  uint16 = 0x0512
	chunkSystemGroup uint16 = 0x0520
	chunkGroupList   uint16 = 0x0521
)

// Save writes the frame time and, per system, its born counter and groups.
// The graph itself is not saved; it is rebuilt from the scene file.
func (s *Simulation) Save(w *archive.Writer) error {
	var firstErr error
	w.Chunk(ChunkScene, func() {
		w.Chunk(chunkSceneTime, func() {
			w.Int32(s.last.Tick)
			w.Float32(s.last.Frac)
			w.Int64(s.frames)
		})
		for _, e := range s.reg.entries() {
			w.Chunk(chunkSystem, func() {
				w.Chunk(chunkSystemName, func() { w.Bytes([]byte(e.sys.Name)) })
				w.Chunk(chunkSystemBorn, func() { w.Int64(e.sys.Ref.BornCount()) })
				for _, g := range s.reg.GroupsOf(e.entity) {
					w.Chunk(chunkSystemGroup, func() {
						w.Chunk(chunkGroupList, func() { w.Uint32(uint32(g.List)) })
						if err := g.Save(w); err != nil && firstErr == nil {
							firstErr = err
						}
					})
				}
			})
		}
	})
	if firstErr != nil {
		return fmt.Errorf("save scene: %w", firstErr)
	}
	return w.Err()
}

// Load reads a scene chunk written by Save into a simulation built from the
// same scene file. remap translates saved node handles. Systems that no
// longer exist are skipped.
func (s *Simulation) Load(r *archive.Reader, remap node.Remap) error {
	id, err := r.OpenChunk()
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	if id != ChunkScene {
		return fmt.Errorf("load scene: unexpected chunk %#04x", id)
	}
	err = r.Chunks(func(id uint16) error {
		switch id {
		case chunkSceneTime:
			tick := r.Int32()
			frac := r.Float32()
			s.last = ptime.Time{Tick: tick, Frac: frac}
			s.frames = r.Int64()
		case chunkSystem:
			return s.loadSystem(r, remap)
		}
		return r.Err()
	})
	if err != nil {
		return fmt.Errorf("load scene: %w", err)
	}
	return r.CloseChunk()
}

func (s *Simulation) loadSystem(r *archive.Reader, remap node.Remap) error {
	var entry *systemEntry
	return r.Chunks(func(id uint16) error {
		switch id {
		case chunkSystemName:
			name := string(r.Bytes())
			if e, ok := s.reg.SystemByName(name); ok {
				entry = s.reg.entry(e)
			}
		case chunkSystemBorn:
			if entry != nil {
				entry.sys.Ref.RestoreBornCount(r.Int64())
			}
		case chunkSystemGroup:
			if entry == nil {
				return nil
			}
			return s.loadGroup(r, entry, remap)
		}
		return r.Err()
	})
}

func (s *Simulation) loadGroup(r *archive.Reader, e *systemEntry, remap node.Remap) error {
	var g *group.Group
	return r.Chunks(func(id uint16) error {
		switch id {
		case chunkGroupList:
			list := remap.Apply(node.Handle(r.Uint32()))
			if n, ok := s.reg.graph.Get(list); !ok || n.Kind != action.KindList {
				return nil
			}
			existing, ok := s.reg.GroupFor(e.sys.Ref, list)
			if !ok {
				existing = group.New(s.reg.allocID(), s.reg.graph, e.sys.Ref, list, s.last, s.groupOptions())
				s.reg.addGroup(e.entity, existing)
			}
			existing.Valid = e.sys.Life
			g = existing
		case group.ChunkGroup:
			if g == nil {
				return nil
			}
			return g.Load(r, remap)
		}
		return r.Err()
	})
}
