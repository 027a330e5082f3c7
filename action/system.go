package action

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// SystemRef is the driving particle system as seen by actions. Groups of
// one system proceed in parallel, so counters are atomic.
type SystemRef struct {
	ID   uuid.UUID
	Name string

	nextBorn  atomic.Int64
	allowance atomic.Int64
}

// NewSystemRef returns a system with a fresh instance id.
func NewSystemRef(name string) *SystemRef {
	return &SystemRef{ID: uuid.New(), Name: name}
}

// BornAllowance is how many more particles may be born this frame.
func (s *SystemRef) BornAllowance() int {
	return int(s.allowance.Load())
}

// SetBornAllowance sets the allowance, typically from the LOD grant.
func (s *SystemRef) SetBornAllowance(n int) {
	if n < 0 {
		n = 0
	}
	s.allowance.Store(int64(n))
}

// ConsumeBorn takes up to want births from the allowance and reserves
// their born indices. Requests beyond the allowance are clamped.
func (s *SystemRef) ConsumeBorn(want int) (granted int, firstBorn int64) {
	if want <= 0 {
		return 0, s.nextBorn.Load()
	}
	for {
		have := s.allowance.Load()
		take := min(int64(want), have)
		if take <= 0 {
			return 0, s.nextBorn.Load()
		}
		if s.allowance.CompareAndSwap(have, have-take) {
			first := s.nextBorn.Add(take) - take
			return int(take), first
		}
	}
}

// RefundBorn returns n births to the allowance. Their born indices are
// not reused.
func (s *SystemRef) RefundBorn(n int) {
	if n > 0 {
		s.allowance.Add(int64(n))
	}
}

// ReserveBorn reserves n born indices without touching the allowance.
func (s *SystemRef) ReserveBorn(n int) int64 {
	return s.nextBorn.Add(int64(n)) - int64(n)
}

// BornCount returns the number of born indices handed out.
func (s *SystemRef) BornCount() int64 {
	return s.nextBorn.Load()
}

// RestoreBornCount sets the born counter after a load.
func (s *SystemRef) RestoreBornCount(n int64) {
	s.nextBorn.Store(n)
}
