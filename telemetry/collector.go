package telemetry

// FrameCounters is what one frame reports to the collector.
type FrameCounters struct {
	Born     int
	Routed   int
	Retries  int
	Failures int
	Dropped  int
	Rounds   int
	LODUsed  float64
}

// Population is the scene state sampled when a window is flushed.
type Population struct {
	Systems   int
	Groups    int
	Particles int
	Speeds    []float64
	Ages      []float64
}

// Collector accumulates frame counters within time windows and produces
// WindowStats.
type Collector struct {
	windowSec   float64
	windowStart float64

	frames    int
	born      int
	routed    int
	retries   int
	failures  int
	dropped   int
	maxRounds int
	lodSum    float64
}

// NewCollector creates a collector with windows of windowSec simulation
// seconds.
func NewCollector(windowSec float64) *Collector {
	if windowSec <= 0 {
		windowSec = 1
	}
	return &Collector{windowSec: windowSec}
}

// Record adds one frame.
func (c *Collector) Record(f FrameCounters) {
	c.frames++
	c.born += f.Born
	c.routed += f.Routed
	c.retries += f.Retries
	c.failures += f.Failures
	c.dropped += f.Dropped
	c.maxRounds = max(c.maxRounds, f.Rounds)
	c.lodSum += f.LODUsed
}

// ShouldFlush returns true once the window has elapsed.
func (c *Collector) ShouldFlush(simSec float64) bool {
	return simSec-c.windowStart >= c.windowSec
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(simSec float64, pop Population) WindowStats {
	speed := ComputeDistribution(pop.Speeds)
	age := ComputeDistribution(pop.Ages)

	stats := WindowStats{
		WindowStartSec: c.windowStart,
		WindowEndSec:   simSec,
		Frames:         c.frames,

		Systems:   pop.Systems,
		Groups:    pop.Groups,
		Particles: pop.Particles,

		Born:     c.born,
		Routed:   c.routed,
		Retries:  c.retries,
		Failures: c.failures,
		Dropped:  c.dropped,

		MaxRounds: c.maxRounds,

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,

		AgeMean: age.Mean,
		AgeP50:  age.P50,
		AgeP90:  age.P90,
	}
	if c.frames > 0 {
		stats.LODUsedAvg = c.lodSum / float64(c.frames)
	}

	*c = Collector{windowSec: c.windowSec, windowStart: simSec}
	return stats
}

// WindowSec returns the window length in simulation seconds.
func (c *Collector) WindowSec() float64 {
	return c.windowSec
}
