// Package camera provides an orbit camera for viewing the simulation.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pitch is kept just short of the poles so the up vector stays defined.
const maxPitch = math.Pi/2 - 0.01

// Camera orbits a target point. Yaw turns around the world Y axis, pitch
// lifts the eye above the XZ plane.
type Camera struct {
	Target   r3.Vec
	Yaw      float64 // radians
	Pitch    float64 // radians
	Distance float64

	// Vertical field of view in degrees
	FOVY float64

	// Distance constraints
	MinDistance, MaxDistance float64

	home orbit
}

// orbit is the state Reset returns to.
type orbit struct {
	target               r3.Vec
	yaw, pitch, distance float64
}

// New creates a camera looking from eye at target.
func New(eye, target r3.Vec, fovy float64) *Camera {
	c := &Camera{
		Target:      target,
		FOVY:        fovy,
		MinDistance: 0.5,
		MaxDistance: 1000,
	}
	d := r3.Sub(eye, target)
	c.Distance = r3.Norm(d)
	if c.Distance == 0 {
		c.Distance = 1
		d = r3.Vec{Z: 1}
	}
	c.Yaw = math.Atan2(d.X, d.Z)
	c.Pitch = clamp(math.Asin(d.Y/r3.Norm(d)), -maxPitch, maxPitch)
	c.home = c.state()
	return c
}

// FromConfig creates a camera from [x, y, z] position and target arrays.
func FromConfig(position, target [3]float64, fovy float64) *Camera {
	return New(
		r3.Vec{X: position[0], Y: position[1], Z: position[2]},
		r3.Vec{X: target[0], Y: target[1], Z: target[2]},
		fovy,
	)
}

func (c *Camera) state() orbit {
	return orbit{target: c.Target, yaw: c.Yaw, pitch: c.Pitch, distance: c.Distance}
}

// Position returns the eye position.
func (c *Camera) Position() r3.Vec {
	cp := math.Cos(c.Pitch)
	off := r3.Vec{
		X: math.Sin(c.Yaw) * cp,
		Y: math.Sin(c.Pitch),
		Z: math.Cos(c.Yaw) * cp,
	}
	return r3.Add(c.Target, r3.Scale(c.Distance, off))
}

// Forward returns the unit view direction.
func (c *Camera) Forward() r3.Vec {
	return r3.Unit(r3.Sub(c.Target, c.Position()))
}

// Right returns the unit vector pointing to the right of the view.
func (c *Camera) Right() r3.Vec {
	return r3.Unit(r3.Cross(c.Forward(), r3.Vec{Y: 1}))
}

// Up returns the unit vector pointing up in the view.
func (c *Camera) Up() r3.Vec {
	return r3.Cross(c.Right(), c.Forward())
}

// Orbit turns the eye around the target.
func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw = math.Mod(c.Yaw+dyaw, 2*math.Pi)
	c.Pitch = clamp(c.Pitch+dpitch, -maxPitch, maxPitch)
}

// ZoomBy scales the orbit distance. Factors below 1 move closer.
func (c *Camera) ZoomBy(factor float64) {
	if factor <= 0 {
		return
	}
	c.Distance = clamp(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// Pan moves the target along the view's right and up axes.
func (c *Camera) Pan(dx, dy float64) {
	move := r3.Add(r3.Scale(dx, c.Right()), r3.Scale(dy, c.Up()))
	c.Target = r3.Add(c.Target, move)
}

// Reset restores the orbit state the camera was created with.
func (c *Camera) Reset() {
	c.Target = c.home.target
	c.Yaw = c.home.yaw
	c.Pitch = c.home.pitch
	c.Distance = c.home.distance
}

// WorldToScreen projects p onto a w×h viewport. ok is false when p is
// behind the eye.
func (c *Camera) WorldToScreen(p r3.Vec, w, h float64) (sx, sy float64, ok bool) {
	rel := r3.Sub(p, c.Position())
	z := r3.Dot(rel, c.Forward())
	if z <= 1e-6 {
		return 0, 0, false
	}
	x := r3.Dot(rel, c.Right())
	y := r3.Dot(rel, c.Up())

	f := (h / 2) / math.Tan(c.FOVY*math.Pi/360)
	sx = w/2 + x*f/z
	sy = h/2 - y*f/z
	return sx, sy, true
}

// IsVisible reports whether a sphere at p could be inside the view frustum
// of a viewport with the given aspect ratio. The check is conservative.
func (c *Camera) IsVisible(p r3.Vec, radius, aspect float64) bool {
	rel := r3.Sub(p, c.Position())
	z := r3.Dot(rel, c.Forward())
	if z < -radius {
		return false
	}
	halfV := math.Tan(c.FOVY * math.Pi / 360)
	halfH := halfV * aspect
	x := math.Abs(r3.Dot(rel, c.Right()))
	y := math.Abs(r3.Dot(rel, c.Up()))

	// Pad by the radius scaled for the widest plane angle.
	padH := radius * math.Sqrt(1+halfH*halfH)
	padV := radius * math.Sqrt(1+halfV*halfV)
	return x <= z*halfH+padH && y <= z*halfV+padV
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
