// Scene snapshot tool - runs a scene headless and renders one frame to a PNG.
//
// Usage: go run ./cmd/pfshot -scene scenes/fountain.yaml -frames 120 -out shot.png
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pflow/camera"
	"github.com/pthm-cable/pflow/config"
	"github.com/pthm-cable/pflow/game"
	"github.com/pthm-cable/pflow/renderer"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenePath := flag.String("scene", "scenes/fountain.yaml", "Scene file to render")
	frames := flag.Int64("frames", 120, "Frames to simulate before rendering")
	outPath := flag.String("out", "shot.png", "Output PNG path")
	width := flag.Int("width", 1024, "Render width")
	height := flag.Int("height", 768, "Render height")
	grid := flag.Bool("grid", true, "Draw the ground grid")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	g, err := game.NewGameWithOptions(game.Options{ScenePath: *scenePath, Headless: true})
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	for g.Frame() < *frames {
		g.UpdateHeadless()
	}

	// Initialize raylib with hidden window
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "pfshot")
	defer rl.CloseWindow()

	cam := camera.FromConfig(cfg.Camera.Position, cfg.Camera.Target, cfg.Camera.FOVY)
	particles := renderer.NewParticleRenderer(float32(cfg.Render.PointSize), cfg.Render.ShapeColor)

	target := rl.LoadRenderTexture(int32(*width), int32(*height))
	defer rl.UnloadRenderTexture(target)

	rl.BeginTextureMode(target)
	rl.ClearBackground(rl.Color{R: 18, G: 20, B: 26, A: 255})
	rl.BeginMode3D(renderer.Camera3D(cam))
	if *grid {
		renderer.DrawGrid(40, 1)
	}
	particles.Draw(g.Simulation().Registry().Groups(), cam, float64(*width)/float64(*height))
	rl.EndMode3D()
	rl.EndTextureMode()

	// Get image from texture and flip it (OpenGL convention)
	img := rl.LoadImageFromTexture(target.Texture)
	rl.ImageFlipVertical(img)
	ok := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)
	g.Unload()

	if !ok {
		fmt.Fprintf(os.Stderr, "Failed to export image\n")
		os.Exit(1)
	}
	fmt.Printf("Frame %d rendered to: %s (%dx%d, %d drawn, %d culled)\n",
		g.Frame(), *outPath, *width, *height, particles.Drawn, particles.Culled)
}
