package action

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/pthm-cable/pflow/node"
)

// StreamKey names the group an action runs for: the driving system and the
// list the action sits in. An action shared by several lists of one system
// gets a stream per list.
type StreamKey struct {
	System uuid.UUID
	List   node.Handle
}

func (k StreamKey) String() string {
	return fmt.Sprintf("%s/%d", k.System, k.List)
}

// Streams keeps one random stream per group driving an action so that
// groups updated in parallel never draw from, rewind or save the same
// generator.
type Streams struct {
	mu    sync.Mutex
	seed  uint64
	byKey map[StreamKey]*stream
}

type stream struct {
	pcg *rand.PCG
	rng *rand.Rand
}

// NewStreams returns an empty set keyed off seed.
func NewStreams(seed uint64) *Streams {
	return &Streams{seed: seed, byKey: make(map[StreamKey]*stream)}
}

func (s *Streams) seedFor(k StreamKey) (uint64, uint64) {
	h := fnv.New64a()
	h.Write(k.System[:])
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(k.List))
	h.Write(b[:])
	sum := h.Sum64()
	return s.seed ^ sum, sum
}

func (s *Streams) get(k StreamKey) *stream {
	st, ok := s.byKey[k]
	if !ok {
		pcg := rand.NewPCG(s.seedFor(k))
		st = &stream{pcg: pcg, rng: rand.New(pcg)}
		s.byKey[k] = st
	}
	return st
}

// For returns the stream for a group, creating it on first sight.
func (s *Streams) For(k StreamKey) *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(k).rng
}

// Len returns the number of groups seen.
func (s *Streams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// Marshal returns the generator state for a group.
func (s *Streams) Marshal(k StreamKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(k).pcg.MarshalBinary()
}

// Unmarshal restores the generator state for a group.
func (s *Streams) Unmarshal(k StreamKey, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.get(k).pcg.UnmarshalBinary(p); err != nil {
		return fmt.Errorf("restore stream %s: %w", k, err)
	}
	return nil
}

// Forget drops the streams of a system that stopped driving the action.
func (s *Streams) Forget(system uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.byKey {
		if k.System == system {
			delete(s.byKey, k)
		}
	}
}
