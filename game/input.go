package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pflow/inspector"
)

// Controls legend shown at the bottom of the screen
const controlsHelp = "SPACE pause | N step | , . speed | arrows/MMB orbit | wheel zoom | " +
	"shift+MMB pan | R reset | TAB panel | H hud | F5 save | F9 load"

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	g.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}
	if rl.IsKeyPressed(rl.KeyN) {
		g.stepOnce = true
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.stepsPerUpdate > 1 {
		g.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.stepsPerUpdate < MaxStepsPerUpdate {
		g.stepsPerUpdate++
	}

	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyH) {
		g.showHUD = !g.showHUD
	}
	if rl.IsKeyPressed(rl.KeyG) {
		g.controlCfg.ShowGrid = !g.controlCfg.ShowGrid
	}
	if rl.IsKeyPressed(rl.KeyP) {
		g.controlCfg.ShowPerf = !g.controlCfg.ShowPerf
	}

	if g.snapshotPath != "" {
		if rl.IsKeyPressed(rl.KeyF5) {
			g.save()
		}
		if rl.IsKeyPressed(rl.KeyF9) {
			g.load()
		}
	}

	g.handleCameraInput()

	mouse := rl.GetMousePosition()
	g.inspector.HandleInput(mouse.X, mouse.Y, g.picks())
}

// handleCameraInput orbits, pans and zooms the camera.
func (g *Game) handleCameraInput() {
	cam := g.camera
	speed := g.config().Camera.Speed * 10
	dt := float64(rl.GetFrameTime())

	if rl.IsKeyDown(rl.KeyLeft) {
		cam.Orbit(-speed*dt, 0)
	}
	if rl.IsKeyDown(rl.KeyRight) {
		cam.Orbit(speed*dt, 0)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		cam.Orbit(0, speed*dt)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		cam.Orbit(0, -speed*dt)
	}

	if rl.IsMouseButtonDown(rl.MouseButtonMiddle) {
		d := rl.GetMouseDelta()
		if rl.IsKeyDown(rl.KeyLeftShift) {
			// Pan proportional to distance so the scene follows the cursor.
			k := cam.Distance / float64(g.screenHeight)
			cam.Pan(-float64(d.X)*k, float64(d.Y)*k)
		} else {
			cam.Orbit(-float64(d.X)*0.005, float64(d.Y)*0.005)
		}
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		cam.ZoomBy(1 - float64(wheel)*0.1)
	}

	if rl.IsKeyPressed(rl.KeyR) {
		cam.Reset()
	}
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h
	g.inspector.Resize(int32(w), int32(h))
}

// picks projects every emitter to the screen for selection.
func (g *Game) picks() []inspector.Pick {
	reg := g.sim.Registry()
	var out []inspector.Pick
	for _, e := range reg.Systems() {
		_, em, _, ok := reg.System(e)
		if !ok {
			continue
		}
		x, y, visible := g.camera.WorldToScreen(em.Position, float64(g.screenWidth), float64(g.screenHeight))
		if !visible {
			continue
		}
		out = append(out, inspector.Pick{Entity: e, X: float32(x), Y: float32(y)})
	}
	return out
}

func (g *Game) save() {
	if err := g.SaveSnapshot(g.snapshotPath); err != nil {
		g.log.Error("failed to save snapshot", "error", err)
	}
}

func (g *Game) load() {
	if err := g.LoadSnapshot(g.snapshotPath); err != nil {
		g.log.Error("failed to load snapshot", "error", err)
	}
	g.inspector.Deselect()
}
