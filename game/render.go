package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/pflow/renderer"
	"github.com/pthm-cable/pflow/ui"
)

var colorBackground = rl.Color{R: 18, G: 20, B: 26, A: 255}

// Draw renders the scene, HUD and panels.
func (g *Game) Draw() {
	g.perfCollector.RecordDraw()

	rl.BeginDrawing()
	rl.ClearBackground(colorBackground)

	reg := g.sim.Registry()
	groups := reg.Groups()
	aspect := float64(g.screenWidth) / float64(g.screenHeight)

	rl.BeginMode3D(renderer.Camera3D(g.camera))
	if g.controlCfg.ShowGrid {
		renderer.DrawGrid(40, 1)
	}
	g.particles.Draw(groups, g.camera, aspect)
	renderer.DrawMarkers(g.markers())
	rl.EndMode3D()

	particles := 0
	for _, gr := range groups {
		particles += gr.Count()
	}

	if g.showHUD {
		g.hud.Draw(ui.HUDData{
			Title:     "pflow: " + g.sceneCfg.Name,
			Systems:   reg.SystemCount(),
			Groups:    len(groups),
			Particles: particles,
			Drawn:     g.particles.Drawn,
			Budget:    g.sim.Budget(),
			Frame:     g.sim.Frames(),
			SimTime:   g.SimTime(),
			Speed:     g.stepsPerUpdate,
			FPS:       rl.GetFPS(),
			Paused:    g.paused,
			Last:      g.lastFrame.Counters,
		})
		g.hud.DrawControls(int32(g.screenWidth), int32(g.screenHeight), controlsHelp)
	}

	g.drawPanels()
	g.inspector.Draw(reg, g.sim.Time())

	rl.EndDrawing()
}

// drawPanels draws the controls and perf panels and applies their edits.
func (g *Game) drawPanels() {
	ctl := &g.controlCfg
	ctl.Paused = g.paused
	ctl.Speed = g.stepsPerUpdate
	ctl.Budget = g.sim.Budget()

	act := g.controls.Draw(ctl)

	g.paused = ctl.Paused
	g.stepsPerUpdate = max(1, ctl.Speed)
	if ctl.Budget != g.sim.Budget() {
		g.sim.SetBudget(ctl.Budget)
	}
	if act.Step {
		g.stepOnce = true
	}
	if act.ResetView {
		g.camera.Reset()
	}
	if g.snapshotPath != "" {
		if act.Save {
			g.save()
		}
		if act.Load {
			g.load()
		}
	}

	if ctl.ShowPerf {
		y := int32(140)
		if g.controls.IsVisible() {
			y = 400
		}
		g.perfPanel.SetPosition(10, y)
		g.perfPanel.Draw(g.perfCollector.Stats())
	}
}

// markers describes every emitter for the renderer.
func (g *Game) markers() []renderer.Marker {
	reg := g.sim.Registry()
	selected, hasSelected := g.inspector.Selected()
	now := g.sim.Time()

	var out []renderer.Marker
	for _, e := range reg.Systems() {
		sys, em, lod, ok := reg.System(e)
		if !ok {
			continue
		}
		load := 0.0
		if lod.Granted > 0 {
			load = float64(lod.Live) / lod.Granted
		}
		out = append(out, renderer.Marker{
			Position: em.Position,
			Alive:    sys.Alive(now),
			Selected: hasSelected && selected == e,
			Load:     load,
		})
	}
	return out
}
