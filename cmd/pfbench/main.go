// Headless benchmark - runs a scene at several worker counts and prints the
// per-phase frame cost.
//
// Usage: go run ./cmd/pfbench -scene scenes/fountain.yaml -frames 600 -workers 1,2,4,8
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pthm-cable/pflow/config"
	"github.com/pthm-cable/pflow/ops"
	"github.com/pthm-cable/pflow/ptime"
	"github.com/pthm-cable/pflow/scene"
	"github.com/pthm-cable/pflow/telemetry"
)

type result struct {
	workers   int
	wall      time.Duration
	particles int
	stats     telemetry.PerfStats
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenePath := flag.String("scene", "scenes/fountain.yaml", "Scene file to run")
	frames := flag.Int("frames", 600, "Frames per run")
	workerList := flag.String("workers", "1,2,4,8", "Comma-separated worker counts")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	sc, err := scene.LoadScene(*scenePath)
	if err != nil {
		slog.Error("failed to load scene", "error", err)
		os.Exit(1)
	}
	workers, err := parseWorkers(*workerList)
	if err != nil {
		slog.Error("bad -workers", "error", err)
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = config.Cfg().Simulation.Seed
	}

	var results []result
	for _, w := range workers {
		r, err := run(sc, *seed, w, *frames)
		if err != nil {
			slog.Error("run failed", "workers", w, "error", err)
			os.Exit(1)
		}
		results = append(results, r)
	}
	printTable(os.Stdout, sc.Name, *frames, results)
}

func parseWorkers(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("worker count %d must be positive", n)
		}
		out = append(out, n)
	}
	return out, nil
}

func run(sc *scene.SceneConfig, seed uint64, workers, frames int) (result, error) {
	cfg := config.Cfg()
	reg, err := sc.Build(ops.NewRegistry(), seed)
	if err != nil {
		return result{}, err
	}
	perf := telemetry.NewPerfCollector(frames)
	opts := scene.OptionsFromConfig(cfg)
	opts.Workers = workers
	opts.Perf = perf
	opts.Logger = slog.Default()
	sim := scene.NewSimulation(reg, opts)

	ctx := context.Background()
	start := time.Now()
	for i := 1; i <= frames; i++ {
		if _, err := sim.Frame(ctx, ptime.FromSeconds(float64(i)*cfg.Derived.FrameSeconds)); err != nil {
			return result{}, err
		}
	}
	return result{
		workers:   workers,
		wall:      time.Since(start),
		particles: sim.Population(0).Particles,
		stats:     perf.Stats(),
	}, nil
}

func printTable(w io.Writer, name string, frames int, results []result) {
	pr := message.NewPrinter(language.English)
	pr.Fprintf(w, "scene %s, %d frames\n\n", name, frames)
	pr.Fprintf(w, "%7s %10s %10s %10s %9s", "workers", "wall", "avg", "max", "particles")
	for _, p := range telemetry.Phases {
		pr.Fprintf(w, " %11s", p)
	}
	fmt.Fprintln(w)
	for _, r := range results {
		pr.Fprintf(w, "%7d %10s %10s %10s %9d",
			r.workers,
			r.wall.Round(time.Millisecond),
			r.stats.AvgFrameDuration.Round(time.Microsecond),
			r.stats.MaxFrameDuration.Round(time.Microsecond),
			r.particles,
		)
		for _, p := range telemetry.Phases {
			pr.Fprintf(w, " %10.1f%%", r.stats.PhasePct[p])
		}
		fmt.Fprintln(w)
	}
}
