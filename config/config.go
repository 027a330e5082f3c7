// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	LOD        LODConfig        `yaml:"lod"`
	Camera     CameraConfig     `yaml:"camera"`
	Render     RenderConfig     `yaml:"render"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// SimulationConfig holds frame driver and particle group settings.
type SimulationConfig struct {
	FrameRate         float64 `yaml:"frame_rate"`          // Frames per simulated second
	Seed              uint64  `yaml:"seed"`                // Seeds every random stream
	Workers           int     `yaml:"workers"`             // Parallel group updates, 0 = GOMAXPROCS
	MaxSubsteps       int     `yaml:"max_substeps"`        // List passes per group update
	MaxShrinkRetries  int     `yaml:"max_shrink_retries"`  // Re-runs after an action lowers the step end
	MaxTransferRounds int     `yaml:"max_transfer_rounds"` // Update/deliver rounds per frame
	CacheFrames       int     `yaml:"cache_frames"`        // Snapshots kept per group, 0 disables
}

// LODConfig holds the particle budget shared by all systems.
type LODConfig struct {
	Budget     float64 `yaml:"budget"`      // Total particles across systems
	DistanceK  float64 `yaml:"distance_k"`  // Benefit falloff: importance / (1 + k*distance)
	MinBenefit float64 `yaml:"min_benefit"` // Floor so distant systems still get something
}

// CameraConfig holds the viewer position used for LOD and rendering.
type CameraConfig struct {
	Position [3]float64 `yaml:"position"`
	Target   [3]float64 `yaml:"target"`
	FOVY     float64    `yaml:"fovy"`
	Speed    float64    `yaml:"speed"` // Orbit speed in radians per second
}

// RenderConfig holds particle drawing settings.
type RenderConfig struct {
	PointSize  float64 `yaml:"point_size"`  // Radius for scale 1
	ShowGrid   bool    `yaml:"show_grid"`
	ShowHUD    bool    `yaml:"show_hud"`
	ShapeColor []int   `yaml:"shape_color"` // Hue per shape index, degrees
}

// TelemetryConfig holds stats and perf output settings.
type TelemetryConfig struct {
	StatsWindowSec float64 `yaml:"stats_window_sec"` // Window for frames.csv rows
	PerfWindow     int     `yaml:"perf_window"`      // Frames averaged by the perf collector
	LogEvery       int     `yaml:"log_every"`        // Frames between perf log lines, 0 disables
}

// DerivedConfig holds values computed from other config values.
type DerivedConfig struct {
	FrameSeconds float64
	Workers      int
	ScreenW32    float32
	ScreenH32    float32
}

var global *Config

// Init loads configuration from path (or embedded defaults if empty) and
// sets it as the global config.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	s := c.Simulation
	if s.FrameRate <= 0 {
		return fmt.Errorf("config: simulation.frame_rate must be positive, got %v", s.FrameRate)
	}
	if s.MaxSubsteps < 1 || s.MaxShrinkRetries < 0 || s.MaxTransferRounds < 1 {
		return fmt.Errorf("config: simulation limits must be positive")
	}
	if c.LOD.Budget < 0 {
		return fmt.Errorf("config: lod.budget must not be negative")
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.FrameSeconds = 1 / c.Simulation.FrameRate
	c.Derived.Workers = c.Simulation.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
