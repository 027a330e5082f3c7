// Package game runs a particle scene frame by frame, either headless or in
// a raylib viewer, and reports telemetry as it goes.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/pflow/camera"
	"github.com/pthm-cable/pflow/config"
	"github.com/pthm-cable/pflow/group"
	"github.com/pthm-cable/pflow/inspector"
	"github.com/pthm-cable/pflow/ops"
	"github.com/pthm-cable/pflow/ptime"
	"github.com/pthm-cable/pflow/renderer"
	"github.com/pthm-cable/pflow/scene"
	"github.com/pthm-cable/pflow/telemetry"
	"github.com/pthm-cable/pflow/ui"
)

// Viewer limits
const (
	MaxStepsPerUpdate = 10
	populationSamples = 256
)

// Options configure a Game.
type Options struct {
	// ScenePath is the scene file to run. Scene, when set, is used instead.
	ScenePath string
	Scene     *scene.SceneConfig

	Seed           uint64 // 0 uses simulation.seed from the config
	LogStats       bool
	StatsWindowSec float64 // 0 uses the config value
	OutputDir      string
	SnapshotPath   string
	Headless       bool
	StepsPerUpdate int

	// StatsCallback receives every flushed telemetry window.
	StatsCallback func(telemetry.WindowStats)
}

// Game holds the complete run state.
type Game struct {
	sim      *scene.Simulation
	factory  *ops.Registry
	sceneCfg *scene.SceneConfig
	seed     uint64
	log      *slog.Logger

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	lastFrame     scene.FrameStats
	snapshotPath  string

	// State
	paused         bool
	stepOnce       bool
	stepsPerUpdate int
	headless       bool

	// Viewer
	camera     *camera.Camera
	particles  *renderer.ParticleRenderer
	hud        *ui.HUD
	perfPanel  *ui.PerfPanel
	controls   *ui.ControlsPanel
	controlCfg ui.Controls
	inspector  *inspector.Inspector
	showHUD    bool

	screenWidth, screenHeight float32
}

func (g *Game) config() *config.Config { return config.Cfg() }

// NewGameWithOptions loads the scene and prepares a run. config.Init must
// have been called.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := config.Cfg()

	sc := opts.Scene
	if sc == nil {
		if opts.ScenePath == "" {
			return nil, errors.New("game: no scene given")
		}
		var err error
		if sc, err = scene.LoadScene(opts.ScenePath); err != nil {
			return nil, err
		}
	}

	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}
	window := opts.StatsWindowSec
	if window <= 0 {
		window = cfg.Telemetry.StatsWindowSec
	}
	steps := opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}

	g := &Game{
		factory:        ops.NewRegistry(),
		sceneCfg:       sc,
		seed:           seed,
		log:            slog.Default().With("scene", sc.Name),
		collector:      telemetry.NewCollector(window),
		perfCollector:  telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		logStats:       opts.LogStats,
		statsCallback:  opts.StatsCallback,
		snapshotPath:   opts.SnapshotPath,
		stepsPerUpdate: steps,
		headless:       opts.Headless,
		camera:         camera.FromConfig(cfg.Camera.Position, cfg.Camera.Target, cfg.Camera.FOVY),
		screenWidth:    cfg.Derived.ScreenW32,
		screenHeight:   cfg.Derived.ScreenH32,
	}

	if err := g.rebuild(); err != nil {
		return nil, err
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	g.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		g.log.Error("failed to write config", "error", err)
	}

	if !g.headless {
		g.particles = renderer.NewParticleRenderer(float32(cfg.Render.PointSize), cfg.Render.ShapeColor)
		g.hud = ui.NewHUD()
		g.perfPanel = ui.NewPerfPanel(10, 140)
		g.controls = ui.NewControlsPanel(10, 140, 220)
		g.inspector = inspector.NewInspector(int32(g.screenWidth), int32(g.screenHeight))
		g.showHUD = cfg.Render.ShowHUD
		g.controlCfg = ui.Controls{
			Speed:     steps,
			MaxSpeed:  MaxStepsPerUpdate,
			Budget:    cfg.LOD.Budget,
			MaxBudget: 4 * cfg.LOD.Budget,
			ShowGrid:  cfg.Render.ShowGrid,
		}
	}

	g.log.Info("scene loaded",
		"systems", g.sim.Registry().SystemCount(),
		"seed", seed,
		"frame_rate", cfg.Simulation.FrameRate,
	)
	return g, nil
}

// rebuild creates a fresh simulation from the scene config.
func (g *Game) rebuild() error {
	reg, err := g.sceneCfg.Build(g.factory, g.seed)
	if err != nil {
		return fmt.Errorf("building scene %q: %w", g.sceneCfg.Name, err)
	}
	opts := scene.OptionsFromConfig(g.config())
	opts.Logger = g.log
	opts.Perf = g.perfCollector
	opts.OnFrame = g.onFrame
	opts.OnInvalidate = func(gr *group.Group, kind group.Invalidation) {
		g.log.Debug("group invalidated", "group", gr.ID, "kind", kind.String())
	}
	if g.sim != nil {
		opts.Budget = g.sim.Budget()
	}
	g.sim = scene.NewSimulation(reg, opts)
	return nil
}

// Simulation returns the running simulation.
func (g *Game) Simulation() *scene.Simulation { return g.sim }

// Frame returns the number of frames simulated.
func (g *Game) Frame() int64 { return g.sim.Frames() }

// SimTime returns the simulated time in seconds.
func (g *Game) SimTime() float64 { return g.sim.Time().Seconds() }

// LastFrame returns the stats of the most recent frame.
func (g *Game) LastFrame() scene.FrameStats { return g.lastFrame }

// SetPaused pauses or resumes the viewer.
func (g *Game) SetPaused(p bool) { g.paused = p }

// step advances the simulation by one frame.
func (g *Game) step() {
	rate := g.config().Simulation.FrameRate
	t := ptime.FromSeconds(float64(g.sim.Frames()+1) / rate)
	g.sim.SetViewer(g.camera.Position())
	if _, err := g.sim.Frame(context.Background(), t); err != nil {
		g.log.Error("frame failed", "frame", g.sim.Frames(), "error", err)
	}
}

// Update handles input and advances the simulation in viewer mode.
func (g *Game) Update() {
	g.handleInput()

	if g.paused && !g.stepOnce {
		return
	}
	steps := g.stepsPerUpdate
	if g.stepOnce {
		steps = 1
		g.stepOnce = false
	}
	for i := 0; i < steps; i++ {
		g.step()
	}
}

// UpdateHeadless advances the simulation without input or graphics.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.step()
	}
}

// Unload flushes output files.
func (g *Game) Unload() {
	if g.snapshotPath != "" && g.headless {
		if err := g.SaveSnapshot(g.snapshotPath); err != nil {
			g.log.Error("failed to save snapshot", "error", err)
		}
	}
	if err := g.outputManager.Close(); err != nil {
		g.log.Error("failed to close output", "error", err)
	}
}
