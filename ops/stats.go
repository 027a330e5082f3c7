package ops

import (
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/pflow/action"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/ptime"
)

// Sample is the statistics of one group after an update.
type Sample struct {
	Time      ptime.Time
	Count     int
	MeanSpeed float64
	StdSpeed  float64
	MeanAge   float64
	MaxAge    float64
}

// LogValue implements slog.LogValuer for structured logging.
func (s Sample) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("t", s.Time.Seconds()),
		slog.Int("count", s.Count),
		slog.Float64("speed_mean", s.MeanSpeed),
		slog.Float64("speed_std", s.StdSpeed),
		slog.Float64("age_mean", s.MeanAge),
		slog.Float64("age_max", s.MaxAge),
	)
}

// Stats records a Sample per post-update. It is both a no-op operator, so
// it can sit in a list, and a post hook. Safe for concurrent groups.
type Stats struct {
	mu      sync.Mutex
	samples []Sample
}

// NewStats returns an empty recorder.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Proceed(a *action.Args, end *ptime.Time) bool { return true }

func (s *Stats) PostUpdate(v channel.View, t ptime.Time) {
	sample := Summarize(v, t)
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
}

// Drain returns and clears the recorded samples.
func (s *Stats) Drain() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.samples
	s.samples = nil
	return out
}

// Summarize computes a Sample from a read-only view.
func Summarize(v channel.View, t ptime.Time) Sample {
	out := Sample{Time: t, Count: v.Count()}
	if out.Count == 0 {
		return out
	}
	if sp, ok := channel.Read[r3.Vec](v, channel.Speed); ok {
		speeds := make([]float64, sp.Count())
		for i := range speeds {
			speeds[i] = r3.Norm(sp.Value(i))
		}
		if len(speeds) > 1 {
			out.MeanSpeed, out.StdSpeed = stat.MeanStdDev(speeds, nil)
		} else {
			out.MeanSpeed = speeds[0]
		}
	}
	if bt, ok := channel.Read[ptime.Time](v, channel.BirthTime); ok {
		ages := make([]float64, bt.Count())
		for i := range ages {
			ages[i] = t.Sub(bt.Value(i)).Seconds()
			out.MaxAge = max(out.MaxAge, ages[i])
		}
		out.MeanAge = stat.Mean(ages, nil)
	}
	return out
}
