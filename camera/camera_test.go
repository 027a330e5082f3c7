package camera

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func nearVec(a, b r3.Vec) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z)
}

func TestNew(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 90)

	if !near(cam.Distance, 10) {
		t.Errorf("expected distance 10, got %f", cam.Distance)
	}
	if !near(cam.Yaw, 0) || !near(cam.Pitch, 0) {
		t.Errorf("expected yaw/pitch 0, got %f/%f", cam.Yaw, cam.Pitch)
	}
	if p := cam.Position(); !nearVec(p, r3.Vec{Z: 10}) {
		t.Errorf("expected eye at (0,0,10), got %v", p)
	}
}

func TestNewDegenerateEye(t *testing.T) {
	cam := New(r3.Vec{X: 1}, r3.Vec{X: 1}, 45)
	if cam.Distance != 1 {
		t.Errorf("expected fallback distance 1, got %f", cam.Distance)
	}
}

func TestFromConfigRoundtrip(t *testing.T) {
	cam := FromConfig([3]float64{3, 4, 12}, [3]float64{0, 1, 0}, 45)
	p := cam.Position()
	if !nearVec(p, r3.Vec{X: 3, Y: 4, Z: 12}) {
		t.Errorf("eye position changed: got %v", p)
	}
}

func TestBasis(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 90)

	if f := cam.Forward(); !nearVec(f, r3.Vec{Z: -1}) {
		t.Errorf("forward = %v", f)
	}
	if r := cam.Right(); !nearVec(r, r3.Vec{X: 1}) {
		t.Errorf("right = %v", r)
	}
	if u := cam.Up(); !nearVec(u, r3.Vec{Y: 1}) {
		t.Errorf("up = %v", u)
	}
}

func TestOrbitClampsPitch(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 45)

	cam.Orbit(0, 10)
	if cam.Pitch != maxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", maxPitch, cam.Pitch)
	}
	cam.Orbit(0, -20)
	if cam.Pitch != -maxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", -maxPitch, cam.Pitch)
	}

	// Distance is preserved while orbiting.
	if d := r3.Norm(cam.Position()); !near(d, 10) {
		t.Errorf("orbit changed distance to %f", d)
	}
}

func TestZoomClamps(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 45)

	cam.ZoomBy(0.5)
	if !near(cam.Distance, 5) {
		t.Errorf("expected distance 5, got %f", cam.Distance)
	}
	cam.ZoomBy(1e-6)
	if cam.Distance != cam.MinDistance {
		t.Errorf("expected min distance, got %f", cam.Distance)
	}
	cam.ZoomBy(1e9)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("expected max distance, got %f", cam.Distance)
	}
	cam.ZoomBy(-1)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("negative factor should be ignored, got %f", cam.Distance)
	}
}

func TestPanAndReset(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 45)

	cam.Pan(1, 2)
	if !nearVec(cam.Target, r3.Vec{X: 1, Y: 2}) {
		t.Errorf("expected target (1,2,0), got %v", cam.Target)
	}

	cam.Orbit(1, 0.3)
	cam.ZoomBy(2)
	cam.Reset()
	if !nearVec(cam.Target, r3.Vec{}) || !near(cam.Distance, 10) || !near(cam.Yaw, 0) {
		t.Errorf("reset did not restore orbit: %+v", cam)
	}
}

func TestWorldToScreen(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 90)

	sx, sy, ok := cam.WorldToScreen(r3.Vec{}, 800, 600)
	if !ok || !near(sx, 400) || !near(sy, 300) {
		t.Errorf("target should map to screen center, got (%f, %f, %v)", sx, sy, ok)
	}

	// fovy 90 puts the focal length at half the viewport height.
	sx, sy, ok = cam.WorldToScreen(r3.Vec{X: 1, Y: 1}, 800, 600)
	if !ok || !near(sx, 430) || !near(sy, 270) {
		t.Errorf("expected (430, 270), got (%f, %f, %v)", sx, sy, ok)
	}

	if _, _, ok := cam.WorldToScreen(r3.Vec{Z: 20}, 800, 600); ok {
		t.Error("point behind the eye should not project")
	}
}

func TestIsVisible(t *testing.T) {
	cam := New(r3.Vec{Z: 10}, r3.Vec{}, 90)

	tests := []struct {
		name    string
		p       r3.Vec
		radius  float64
		visible bool
	}{
		{"target", r3.Vec{}, 0.1, true},
		{"behind", r3.Vec{Z: 30}, 1, false},
		{"far right", r3.Vec{X: 100}, 1, false},
		{"edge overlap", r3.Vec{X: 10.5}, 1, true},
	}
	for _, tc := range tests {
		if got := cam.IsVisible(tc.p, tc.radius, 1); got != tc.visible {
			t.Errorf("%s: expected visible=%v, got %v", tc.name, tc.visible, got)
		}
	}
}
