// Package inspector draws a panel describing the selected particle system.
package inspector

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pflow/group"
	"github.com/pthm-cable/pflow/ptime"
	"github.com/pthm-cable/pflow/scene"
)

// Panel dimensions
const (
	PanelWidth   = 340
	PanelPadding = 10
	HeaderHeight = 30

	// PickRadius is how close, in pixels, a click must land to an emitter.
	PickRadius = 24
)

// Panel colors
var (
	ColorPanelBg     = rl.Color{R: 30, G: 30, B: 35, A: 240}
	ColorPanelHeader = rl.Color{R: 45, G: 45, B: 55, A: 255}
	ColorPanelBorder = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorHeaderText  = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorCloseBtn    = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorSection     = rl.Color{R: 50, G: 50, B: 60, A: 255}
	ColorSectionText = rl.Color{R: 200, G: 200, B: 220, A: 255}
)

// Pick is a system's emitter projected to the screen.
type Pick struct {
	Entity ecs.Entity
	X, Y   float32
}

// Nearest returns the pick closest to (x, y) within radius pixels.
func Nearest(picks []Pick, x, y, radius float32) (ecs.Entity, bool) {
	var best ecs.Entity
	bestDist := radius * radius
	found := false
	for _, p := range picks {
		dx, dy := p.X-x, p.Y-y
		if d := dx*dx + dy*dy; d <= bestDist {
			best, bestDist, found = p.Entity, d, true
		}
	}
	return best, found
}

// Inspector manages system selection and panel rendering.
type Inspector struct {
	selected    ecs.Entity
	hasSelected bool
	panelX      int32
	panelY      int32
	lastHeight  int32
}

// NewInspector creates a new inspector instance.
func NewInspector(screenWidth, screenHeight int32) *Inspector {
	return &Inspector{
		panelX: screenWidth - PanelWidth - 10,
		panelY: 10,
	}
}

// Resize keeps the panel against the right edge of the screen.
func (ins *Inspector) Resize(screenWidth, screenHeight int32) {
	ins.panelX = screenWidth - PanelWidth - 10
}

// HandleInput selects the system whose emitter is under the mouse.
func (ins *Inspector) HandleInput(mouseX, mouseY float32, picks []Pick) {
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) || rl.IsKeyPressed(rl.KeyEscape) {
		ins.Deselect()
		return
	}
	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return
	}

	if ins.hasSelected {
		closeX := ins.panelX + PanelWidth - 25
		closeY := ins.panelY + 5
		if int32(mouseX) >= closeX && int32(mouseX) <= closeX+20 &&
			int32(mouseY) >= closeY && int32(mouseY) <= closeY+20 {
			ins.Deselect()
			return
		}
		if int32(mouseX) >= ins.panelX && int32(mouseX) <= ins.panelX+PanelWidth &&
			int32(mouseY) >= ins.panelY && int32(mouseY) <= ins.panelY+ins.lastHeight {
			return
		}
	}

	if e, ok := Nearest(picks, mouseX, mouseY, PickRadius); ok {
		ins.Select(e)
	}
}

// Select makes e the inspected system.
func (ins *Inspector) Select(e ecs.Entity) {
	ins.selected = e
	ins.hasSelected = true
}

// Deselect clears the current selection.
func (ins *Inspector) Deselect() {
	ins.hasSelected = false
}

// Selected returns the currently selected system.
func (ins *Inspector) Selected() (ecs.Entity, bool) {
	return ins.selected, ins.hasSelected
}

// Draw renders the panel for the selected system.
func (ins *Inspector) Draw(reg *scene.Registry, now ptime.Time) {
	if !ins.hasSelected {
		return
	}
	sys, em, lod, ok := reg.System(ins.selected)
	if !ok {
		ins.Deselect()
		return
	}
	groups := reg.GroupsOf(ins.selected)

	height := ins.lastHeight
	if height == 0 {
		height = 300
	}
	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, height, ColorPanelBg)
	rl.DrawRectangleLinesEx(
		rl.Rectangle{X: float32(ins.panelX), Y: float32(ins.panelY), Width: PanelWidth, Height: float32(height)},
		1,
		ColorPanelBorder,
	)

	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, HeaderHeight, ColorPanelHeader)
	rl.DrawText("SYSTEM", ins.panelX+PanelPadding, ins.panelY+7, 16, ColorHeaderText)

	closeX := ins.panelX + PanelWidth - 25
	closeY := ins.panelY + 5
	rl.DrawRectangle(closeX, closeY, 20, 20, ColorCloseBtn)
	rl.DrawText("X", closeX+6, closeY+3, 14, rl.White)

	x := ins.panelX + PanelPadding
	y := ins.panelY + HeaderHeight + PanelPadding

	state := "idle"
	if sys.Alive(now) {
		state = "alive"
	}
	rl.DrawText(fmt.Sprintf("%s (%s)", sys.Name, state), x, y, 14, ColorHeaderText)
	y += 22

	for _, section := range []struct {
		title string
		comp  any
	}{
		{"SYSTEM", sys},
		{"EMITTER", em},
		{"LOD", lod},
	} {
		y = ins.separator(x, y)
		ins.drawSectionHeader(x, y, section.title)
		y += 20
		for _, f := range ExtractFields(section.comp) {
			y += DrawField(x, y, f, now)
		}
	}

	y = ins.separator(x, y)
	ins.drawSectionHeader(x, y, "GROUPS")
	y += 20
	if len(groups) == 0 {
		rl.DrawText("(no groups)", x, y, 12, ColorTextDim)
		y += 16
	} else {
		labels, counts, peak := groupCounts(reg, groups)
		y += DrawCounts(x, y, "Particles", labels, counts, peak)
		for _, g := range groups {
			st := g.LastStats()
			rl.DrawText(fmt.Sprintf("#%d sync %.2fs  steps %d  retries %d  routed %d",
				g.ID, g.SyncTime().Seconds(), st.Substeps, st.Retries, st.Routed), x, y, 12, ColorTextDim)
			y += 16
		}
	}

	ins.lastHeight = y + PanelPadding - ins.panelY
}

func groupCounts(reg *scene.Registry, groups []*group.Group) ([]string, []float32, float32) {
	labels := make([]string, len(groups))
	counts := make([]float32, len(groups))
	var peak float32
	for i, g := range groups {
		labels[i] = fmt.Sprint(g.ID)
		if n, ok := reg.Graph().Get(g.List); ok {
			labels[i] = n.Name
		}
		counts[i] = float32(g.Count())
		if counts[i] > peak {
			peak = counts[i]
		}
	}
	return labels, counts, peak
}

func (ins *Inspector) separator(x, y int32) int32 {
	y += 4
	rl.DrawLine(x, y, ins.panelX+PanelWidth-PanelPadding, y, ColorPanelBorder)
	return y + 8
}

// drawSectionHeader renders a section title.
func (ins *Inspector) drawSectionHeader(x, y int32, title string) {
	rl.DrawRectangle(x-2, y-2, PanelWidth-2*PanelPadding+4, 18, ColorSection)
	rl.DrawText(title, x+2, y, 14, ColorSectionText)
}
