package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Controls is the viewer state edited by the controls panel.
type Controls struct {
	Paused    bool
	Speed     int // frames per update
	MaxSpeed  int
	Budget    float64
	MaxBudget float64
	ShowGrid  bool
	ShowPerf  bool
}

// Actions are one-shot requests from the controls panel.
type Actions struct {
	Step       bool
	ResetView  bool
	Save, Load bool
}

// ControlsPanel renders the left-side controls panel.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Draw renders the panel and applies edits to ctl.
func (c *ControlsPanel) Draw(ctl *Controls) Actions {
	var act Actions
	if !c.visible {
		return act
	}

	r := c.renderer
	pad := r.Theme.Padding
	r.DrawPanel(c.x, c.y, c.width, 250)

	x := float32(c.x + pad)
	y := float32(c.y + pad)
	w := float32(c.width - 2*pad)

	rl.DrawText("Controls", int32(x), int32(y), 16, rl.White)
	y += 24

	label := "Pause"
	if ctl.Paused {
		label = "Resume"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w/2 - 4, Height: 24}, label) {
		ctl.Paused = !ctl.Paused
	}
	if gui.Button(rl.Rectangle{X: x + w/2 + 4, Y: y, Width: w/2 - 4, Height: 24}, "Step") {
		act.Step = true
	}
	y += 32

	rl.DrawText(fmt.Sprintf("Speed: %dx", ctl.Speed), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	speed := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "",
		float32(ctl.Speed), 1, float32(ctl.MaxSpeed))
	ctl.Speed = int(speed + 0.5)
	y += 24

	rl.DrawText(fmt.Sprintf("LOD budget: %.0f", ctl.Budget), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	budget := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "",
		float32(ctl.Budget), 0, float32(ctl.MaxBudget))
	ctl.Budget = float64(budget)
	y += 26

	ctl.ShowGrid = gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 16, Height: 16}, "Grid", ctl.ShowGrid)
	ctl.ShowPerf = gui.CheckBox(rl.Rectangle{X: x + w/2, Y: y, Width: 16, Height: 16}, "Perf", ctl.ShowPerf)
	y += 26

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 24}, "Reset view") {
		act.ResetView = true
	}
	y += 30
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w/2 - 4, Height: 24}, "Save") {
		act.Save = true
	}
	if gui.Button(rl.Rectangle{X: x + w/2 + 4, Y: y, Width: w/2 - 4, Height: 24}, "Load") {
		act.Load = true
	}
	return act
}
