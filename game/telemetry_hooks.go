package game

import (
	"github.com/pthm-cable/pflow/scene"
)

// onFrame records a completed frame and flushes telemetry when a window
// has elapsed.
func (g *Game) onFrame(fs scene.FrameStats) {
	g.lastFrame = fs
	g.collector.Record(fs.Counters)
	g.flushTelemetry(fs.Time.Seconds())

	every := g.config().Telemetry.LogEvery
	if every > 0 && g.logStats && g.sim.Frames()%int64(every) == 0 {
		g.log.Info("frame", "stats", fs)
	}
}

// flushTelemetry checks if the stats window should be flushed.
func (g *Game) flushTelemetry(simSec float64) {
	if !g.collector.ShouldFlush(simSec) {
		return
	}

	stats := g.collector.Flush(simSec, g.sim.Population(populationSamples))
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteWindow(stats); err != nil {
			g.log.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, g.sim.Frames()); err != nil {
			g.log.Error("failed to write perf", "error", err)
		}
	}
}
