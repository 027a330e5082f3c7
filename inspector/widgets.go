package inspector

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/ptime"
)

// Widget colors
var (
	ColorBarBg    = rl.Color{R: 40, G: 40, B: 40, A: 255}
	ColorBarFill  = rl.Color{R: 100, G: 180, B: 100, A: 255}
	ColorBarLow   = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorText     = rl.Color{R: 220, G: 220, B: 220, A: 255}
	ColorTextDim  = rl.Color{R: 150, G: 150, B: 150, A: 255}
	ColorBoolOn   = rl.Color{R: 100, G: 200, B: 100, A: 255}
	ColorBoolOff  = rl.Color{R: 80, G: 80, B: 80, A: 255}
	ColorAxisX    = rl.Color{R: 230, G: 90, B: 90, A: 255}
	ColorAxisY    = rl.Color{R: 90, G: 210, B: 90, A: 255}
	ColorAxisZ    = rl.Color{R: 90, G: 140, B: 230, A: 255}
	ColorTimeline = rl.Color{R: 220, G: 180, B: 90, A: 255}
)

// DrawLabel renders a text value.
func DrawLabel(x, y int32, name string, value any, h Hints) int32 {
	text := FormatValue(value, h.Format)
	rl.DrawText(fmt.Sprintf("%s: %s", name, text), x, y, 16, ColorText)
	return 20
}

// DrawBar renders a horizontal progress bar.
func DrawBar(x, y int32, name string, value float64, h Hints) int32 {
	full := h.Max
	if full <= 0 {
		full = 1
	}
	ratio := float32(value / full)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}

	barWidth := int32(120)
	barHeight := int32(14)

	rl.DrawText(name, x, y, 14, ColorTextDim)

	barX := x + 90
	rl.DrawRectangle(barX, y, barWidth, barHeight, ColorBarBg)

	fillColor := ColorBarFill
	if ratio < 0.3 {
		fillColor = ColorBarLow
	}
	rl.DrawRectangle(barX, y, int32(float32(barWidth)*ratio), barHeight, fillColor)

	rl.DrawText(fmt.Sprintf("%.2f", value), barX+barWidth+5, y, 14, ColorTextDim)
	return 18
}

// DrawBool renders an on/off indicator.
func DrawBool(x, y int32, name string, value bool) int32 {
	rl.DrawText(name, x, y, 14, ColorTextDim)

	indicatorX := x + 90
	indicatorSize := int32(14)

	color := ColorBoolOff
	text := "OFF"
	if value {
		color = ColorBoolOn
		text = "ON"
	}

	rl.DrawRectangle(indicatorX, y, indicatorSize, indicatorSize, color)
	rl.DrawText(text, indicatorX+indicatorSize+5, y, 14, color)
	return 18
}

// DrawVec renders the three components of a vector in axis colors.
func DrawVec(x, y int32, name string, v r3.Vec) int32 {
	rl.DrawText(name, x, y, 14, ColorTextDim)

	cx := x + 90
	for i, c := range []struct {
		v     float64
		color rl.Color
	}{{v.X, ColorAxisX}, {v.Y, ColorAxisY}, {v.Z, ColorAxisZ}} {
		rl.DrawText(fmt.Sprintf("%7.2f", c.v), cx+int32(i)*62, y, 14, c.color)
	}
	return 18
}

// DrawInterval renders an interval as text above a timeline marking the
// current time. Intervals without an end are drawn against now+span.
func DrawInterval(x, y int32, name string, iv ptime.Interval, now ptime.Time) int32 {
	rl.DrawText(fmt.Sprintf("%s: %s", name, FormatInterval(iv)), x, y, 14, ColorTextDim)
	y += 16

	width := int32(200)
	rl.DrawRectangle(x, y, width, 6, ColorBarBg)

	lo := iv.Start.Seconds()
	if iv.Start.Equal(ptime.Forever.Start) {
		lo = 0
	}
	hi := iv.End.Seconds()
	if iv.End.Equal(ptime.Forever.End) {
		hi = now.Seconds() + 10
	}
	if hi <= lo {
		return 26
	}
	rl.DrawRectangle(x, y, width, 6, ColorBarFill)

	f := (now.Seconds() - lo) / (hi - lo)
	if f >= 0 && f <= 1 {
		mx := x + int32(f*float64(width))
		rl.DrawRectangle(mx-1, y-2, 3, 10, ColorTimeline)
	}
	return 26
}

// DrawCounts renders a row of mini bars, one per value, with their labels
// underneath.
func DrawCounts(x, y int32, name string, labels []string, values []float32, peak float32) int32 {
	barWidth := int32(28)
	barHeight := int32(30)
	gap := int32(4)

	rl.DrawText(name, x, y, 14, ColorTextDim)

	barX := x + 90
	for i, v := range values {
		ratio := float32(0)
		if peak > 0 {
			ratio = v / peak
		}
		if ratio > 1 {
			ratio = 1
		}

		bx := barX + int32(i)*(barWidth+gap)
		rl.DrawRectangle(bx, y, barWidth, barHeight, ColorBarBg)

		fillHeight := int32(float32(barHeight) * ratio)
		rl.DrawRectangle(bx, y+barHeight-fillHeight, barWidth, fillHeight, lerpColor(ColorBarLow, ColorBarFill, ratio))

		if i < len(labels) {
			tw := rl.MeasureText(labels[i], 8)
			rl.DrawText(labels[i], bx+barWidth/2-tw/2, y+barHeight+2, 8, ColorTextDim)
		}
	}
	return barHeight + 14
}

// DrawField renders a field using its widget type. now places interval
// timelines.
func DrawField(x, y int32, field Field, now ptime.Time) int32 {
	switch field.Widget {
	case WidgetBar:
		if v, ok := toFloat(field.Value); ok {
			return DrawBar(x, y, field.Name, v, field.Hints)
		}
	case WidgetBool:
		if v, ok := field.Value.(bool); ok {
			return DrawBool(x, y, field.Name, v)
		}
	case WidgetVec:
		if v, ok := field.Value.(r3.Vec); ok {
			return DrawVec(x, y, field.Name, v)
		}
	case WidgetInterval:
		if iv, ok := field.Value.(ptime.Interval); ok {
			return DrawInterval(x, y, field.Name, iv, now)
		}
	}
	return DrawLabel(x, y, field.Name, field.Value, field.Hints)
}

// lerpColor interpolates between two colors.
func lerpColor(a, b rl.Color, t float32) rl.Color {
	return rl.Color{
		R: uint8(float32(a.R) + (float32(b.R)-float32(a.R))*t),
		G: uint8(float32(a.G) + (float32(b.G)-float32(a.G))*t),
		B: uint8(float32(a.B) + (float32(b.B)-float32(a.B))*t),
		A: 255,
	}
}
