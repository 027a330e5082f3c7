// Package renderer draws particle groups and emitters with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/camera"
	"github.com/pthm-cable/pflow/channel"
	"github.com/pthm-cable/pflow/group"
)

// Shapes understood by the renderer. Other indices draw as points.
const (
	ShapeSphere int32 = iota
	ShapeCube
	ShapePoint
	ShapeTetra
)

// ParticleRenderer renders the particles of every group.
type ParticleRenderer struct {
	// PointSize is the drawn radius of a particle with scale 1.
	PointSize float32
	// ShapeHues is the hue, in degrees, used for each shape index.
	ShapeHues []int

	// Drawn and Culled count particles of the last Draw call.
	Drawn, Culled int
}

// NewParticleRenderer creates a new particle renderer.
func NewParticleRenderer(pointSize float32, hues []int) *ParticleRenderer {
	return &ParticleRenderer{PointSize: pointSize, ShapeHues: hues}
}

// Draw renders the particles of groups. Must be called between
// BeginMode3D and EndMode3D.
func (r *ParticleRenderer) Draw(groups []*group.Group, cam *camera.Camera, aspect float64) {
	r.Drawn, r.Culled = 0, 0
	for _, g := range groups {
		r.drawGroup(g, cam, aspect)
	}
}

func (r *ParticleRenderer) drawGroup(g *group.Group, cam *camera.Camera, aspect float64) {
	v := g.View()
	n := v.Count()
	if n == 0 {
		return
	}
	pos, ok := channel.Read[r3.Vec](v, channel.Position)
	if !ok {
		return
	}
	scale, hasScale := channel.Read[float32](v, channel.Scale)
	shape, hasShape := channel.Read[int32](v, channel.Shape)
	speed, hasSpeed := channel.Read[r3.Vec](v, channel.Speed)

	for i := 0; i < n; i++ {
		size := r.PointSize
		if hasScale {
			size *= scale.Value(i)
		}
		if size <= 0 {
			continue
		}
		p := pos.Value(i)
		if !cam.IsVisible(p, float64(size), aspect) {
			r.Culled++
			continue
		}

		sh := ShapeSphere
		if hasShape {
			sh = shape.Value(i)
		}
		var sp float64
		if hasSpeed {
			sp = r3.Norm(speed.Value(i))
		}
		drawShape(sh, toVector3(p), size, r.color(sh, sp))
		r.Drawn++
	}
}

// color picks the shape's hue and brightens faster particles.
func (r *ParticleRenderer) color(shape int32, speed float64) rl.Color {
	hue := float32(200)
	if len(r.ShapeHues) > 0 {
		idx := int(shape)
		if idx < 0 {
			idx = 0
		}
		hue = float32(r.ShapeHues[idx%len(r.ShapeHues)])
	}
	value := float32(0.55 + speed/20)
	if value > 1 {
		value = 1
	}
	return rl.ColorFromHSV(hue, 0.7, value)
}

func drawShape(shape int32, p rl.Vector3, size float32, color rl.Color) {
	switch shape {
	case ShapeSphere:
		rl.DrawSphereEx(p, size, 4, 6, color)
	case ShapeCube:
		rl.DrawCube(p, size*2, size*2, size*2, color)
	case ShapeTetra:
		rl.DrawCylinder(p, 0, size, size*2, 3, color)
	default:
		rl.DrawPoint3D(p, color)
	}
}

func toVector3(v r3.Vec) rl.Vector3 {
	return rl.Vector3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
