package action

import (
	"fmt"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/node"
)

// Chunk ids of a saved action state.
const (
	ChunkState        uint16 = 0x0300
	chunkStateHandle  uint16 = 0x0301
	chunkStateRand    uint16 = 0x0302
	chunkStatePayload uint16 = 0x0303
)

// State is the per action and group history: the random stream the group
// draws from and an optional action payload.
type State struct {
	Action  node.Handle
	Rand    []byte
	Payload []byte
}

// Capture collects the state of n as driven by the group named by key.
func Capture(n *Node, key StreamKey) (State, error) {
	st := State{Action: n.Handle}
	p, err := n.Streams.Marshal(key)
	if err != nil {
		return st, fmt.Errorf("capture %d: %w", n.Handle, err)
	}
	st.Rand = p
	if s, ok := n.Action().(Stateful); ok {
		st.Payload = s.SaveState()
	}
	return st, nil
}

// Restore applies st to n for the group named by key.
func (st State) Restore(n *Node, key StreamKey) error {
	if len(st.Rand) > 0 {
		if err := n.Streams.Unmarshal(key, st.Rand); err != nil {
			return err
		}
	}
	if s, ok := n.Action().(Stateful); ok && st.Payload != nil {
		if err := s.LoadState(st.Payload); err != nil {
			return fmt.Errorf("restore %d payload: %w", n.Handle, err)
		}
	}
	return nil
}

// Save writes st as one state chunk.
func (st State) Save(w *archive.Writer) {
	w.Chunk(ChunkState, func() {
		w.Chunk(chunkStateHandle, func() { w.Uint32(uint32(st.Action)) })
		if st.Rand != nil {
			w.Chunk(chunkStateRand, func() { w.Bytes(st.Rand) })
		}
		if st.Payload != nil {
			w.Chunk(chunkStatePayload, func() { w.Bytes(st.Payload) })
		}
	})
}

// LoadState reads the body of a state chunk the caller has opened and maps
// the stored handle through remap.
func LoadState(r *archive.Reader, remap node.Remap) (State, error) {
	var st State
	err := r.Chunks(func(id uint16) error {
		switch id {
		case chunkStateHandle:
			st.Action = remap.Apply(node.Handle(r.Uint32()))
		case chunkStateRand:
			st.Rand = r.Bytes()
		case chunkStatePayload:
			st.Payload = r.Bytes()
		}
		return r.Err()
	})
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}
