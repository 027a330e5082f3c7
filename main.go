package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pflow/config"
	"github.com/pthm-cable/pflow/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenePath := flag.String("scene", "scenes/fountain.yaml", "Scene file to run")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshot := flag.String("snapshot", "", "Snapshot file (F5/F9 in the viewer, written on exit when headless)")
	resume := flag.Bool("resume", false, "Load -snapshot before the first frame")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	maxFrames := flag.Int64("max-frames", 0, "Stop after N frames (0 = unlimited)")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Frames per update call (higher = faster headless runs)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *headless && *maxFrames == 0 {
		slog.Error("headless runs need -max-frames")
		os.Exit(1)
	}

	opts := game.Options{
		ScenePath:      *scenePath,
		Seed:           *seed,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		SnapshotPath:   *snapshot,
		Headless:       *headless,
		StepsPerUpdate: *stepsPerUpdate,
	}

	if *headless {
		g, err := game.NewGameWithOptions(opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}
		defer g.Unload()
		resumeSnapshot(g, *snapshot, *resume)

		slog.Info("starting headless simulation",
			"scene", *scenePath,
			"max_frames", *maxFrames,
			"steps_per_update", *stepsPerUpdate,
		)

		for g.Frame() < *maxFrames {
			g.UpdateHeadless()
		}
		slog.Info("max frames reached", "frame", g.Frame(), "sim_time", g.SimTime())
		return
	}

	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "pflow")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.NewGameWithOptions(opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return
	}
	defer g.Unload()
	resumeSnapshot(g, *snapshot, *resume)

	for !rl.WindowShouldClose() {
		g.Update()
		g.Draw()

		if *maxFrames > 0 && g.Frame() >= *maxFrames {
			break
		}
	}
}

func resumeSnapshot(g *game.Game, path string, resume bool) {
	if !resume || path == "" {
		return
	}
	if err := g.LoadSnapshot(path); err != nil {
		slog.Error("failed to resume", "path", path, "error", err)
		os.Exit(1)
	}
}
