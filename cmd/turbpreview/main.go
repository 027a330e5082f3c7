// Turbulence field preview tool - interactive visualization with sliders.
//
// Draws the acceleration a turbulence action applies on a horizontal slice
// of the scene. Brightness is magnitude, hue is direction in the XZ plane.
//
// Usage: go run ./cmd/turbpreview
package main

import (
	"fmt"
	"image/color"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/ops"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
	gridSize     = 128
)

// sliceParams holds the turbulence parameters and where the slice is taken.
type sliceParams struct {
	Strength  float32
	Frequency float32
	Extent    float32 // half width of the slice in world units
	Height    float32 // Y of the slice
	Seed      int64
}

func main() {
	rl.InitWindow(windowWidth, windowHeight, "Turbulence Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	params := sliceParams{
		Strength:  2,
		Frequency: 0.3,
		Extent:    10,
		Height:    2,
		Seed:      7,
	}

	field := make([]r3.Vec, gridSize*gridSize)
	img := rl.GenImageColor(gridSize, gridSize, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	var t float32
	animating := false
	needsRegen := true

	for !rl.WindowShouldClose() {
		if animating {
			t += rl.GetFrameTime()
			needsRegen = true
		}
		if needsRegen {
			peak := sampleSlice(field, params, float64(t))
			updateTexture(texture, field, peak)
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: gridSize, Height: gridSize},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		var sum, peak float64
		for _, v := range field {
			m := r3.Norm(v) * float64(params.Strength)
			sum += m
			peak = math.Max(peak, m)
		}
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Mean accel: %.3f  Max: %.3f", sum/float64(len(field)), peak), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Time: %.1fs", t), 15, statsY+20, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Turbulence Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		sliders := []struct {
			label    string
			value    *float32
			min, max float32
		}{
			{"Strength (acceleration scale)", &params.Strength, 0, 10},
			{"Frequency (noise cycles per unit)", &params.Frequency, 0.01, 2},
			{"Extent (half width of slice)", &params.Extent, 1, 50},
			{"Height (slice Y)", &params.Height, -10, 10},
		}
		for _, s := range sliders {
			rl.DrawText(s.label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			v := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				fmt.Sprintf("%.2f", s.min), fmt.Sprintf("%.2f", s.max),
				*s.value, s.min, s.max,
			)
			rl.DrawText(fmt.Sprintf("%.2f", *s.value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			if v != *s.value {
				*s.value = v
				needsRegen = true
			}
			panelY += 35
		}

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(animating, "Stop", "Animate")) {
			animating = !animating
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Next Seed") {
			params.Seed++
			needsRegen = true
		}
		panelY += 50

		rl.DrawText("Action YAML:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		yaml := actionYAML(params)
		rl.DrawText(yaml, int32(panelX), int32(panelY), 14, rl.Gray)

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(yaml)
		}

		rl.EndDrawing()
	}
}

func actionYAML(p sliceParams) string {
	return fmt.Sprintf(`- type: turbulence
  params:
    strength: %.2f
    frequency: %.2f
    seed: %d`, p.Strength, p.Frequency, p.Seed)
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// sampleSlice fills field with unscaled noise vectors and returns the
// largest magnitude.
func sampleSlice(field []r3.Vec, p sliceParams, t float64) float64 {
	turb := &ops.Turbulence{Strength: float64(p.Strength), Frequency: float64(p.Frequency), Seed: p.Seed}
	ext := float64(p.Extent)
	var peak float64
	for j := 0; j < gridSize; j++ {
		z := (float64(j)+0.5)/gridSize*2*ext - ext
		for i := 0; i < gridSize; i++ {
			x := (float64(i)+0.5)/gridSize*2*ext - ext
			v := turb.Sample(r3.Vec{X: x, Y: float64(p.Height), Z: z}, t)
			field[j*gridSize+i] = v
			peak = math.Max(peak, r3.Norm(v))
		}
	}
	return peak
}

// updateTexture maps direction to hue and magnitude to brightness.
func updateTexture(texture rl.Texture2D, field []r3.Vec, peak float64) {
	pixels := make([]color.RGBA, len(field))
	for i, v := range field {
		hue := float32(math.Atan2(v.Z, v.X)*180/math.Pi + 180)
		val := float32(0)
		if peak > 0 {
			val = float32(r3.Norm(v) / peak)
		}
		c := rl.ColorFromHSV(hue, 0.8, val)
		pixels[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	}
	rl.UpdateTexture(texture, pixels)
}
