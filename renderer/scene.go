package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/camera"
)

// Emitter marker colors
var (
	ColorEmitterAlive    = rl.Color{R: 255, G: 200, B: 80, A: 255}
	ColorEmitterIdle     = rl.Color{R: 110, G: 110, B: 120, A: 255}
	ColorEmitterSelected = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorGrid            = rl.Color{R: 60, G: 60, B: 70, A: 255}
)

// Marker is an emitter drawn in the scene.
type Marker struct {
	Position r3.Vec
	Alive    bool
	Selected bool
	// Load is the fraction of the system's granted budget in use.
	Load float64
}

// Camera3D converts an orbit camera to raylib's camera.
func Camera3D(cam *camera.Camera) rl.Camera3D {
	return rl.Camera3D{
		Position:   toVector3(cam.Position()),
		Target:     toVector3(cam.Target),
		Up:         rl.Vector3{Y: 1},
		Fovy:       float32(cam.FOVY),
		Projection: rl.CameraPerspective,
	}
}

// DrawGrid draws the ground grid. Must be called in 3D mode.
func DrawGrid(slices int32, spacing float32) {
	rl.DrawGrid(slices, spacing)
}

// DrawMarkers draws a wire cube at each emitter with a bar showing how
// much of its budget is live. Must be called in 3D mode.
func DrawMarkers(markers []Marker) {
	for _, m := range markers {
		p := toVector3(m.Position)
		color := ColorEmitterIdle
		if m.Alive {
			color = ColorEmitterAlive
		}
		size := float32(0.4)
		if m.Selected {
			rl.DrawCubeWires(p, size*1.6, size*1.6, size*1.6, ColorEmitterSelected)
		}
		rl.DrawCubeWires(p, size, size, size, color)

		load := float32(m.Load)
		if load > 1 {
			load = 1
		}
		if load > 0 {
			top := rl.Vector3{X: p.X, Y: p.Y + size/2 + load, Z: p.Z}
			rl.DrawLine3D(rl.Vector3{X: p.X, Y: p.Y + size/2, Z: p.Z}, top, color)
		}
	}
}
