// Package render draws engine scenes to images with fogleman/gg. Frames
// are perspective wireframes: boxes as edges, spheres as discs, arm links
// as thick round-capped strokes.
package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits Target. Yaw and Pitch are in degrees; Yaw 0 looks along
// +y and negative Pitch looks down.
type Camera struct {
	Target   r3.Vec
	Distance float64
	Yaw      float64
	Pitch    float64
	Roll     float64
	FOV      float64
}

func DefaultCamera() Camera {
	return Camera{
		Target:   r3.Vec{Z: 0.72},
		Distance: 2,
		Yaw:      45,
		Pitch:    -30,
		FOV:      60,
	}
}

type view struct {
	eye                r3.Vec
	forward, right, up r3.Vec
	focal              float64
	cx, cy             float64
	near               float64
}

func deg(v float64) float64 { return v * math.Pi / 180 }

func (c Camera) view(width, height int) view {
	yaw, pitch, roll := deg(c.Yaw), deg(c.Pitch), deg(c.Roll)
	fwd := r3.Vec{
		X: math.Cos(pitch) * math.Sin(yaw),
		Y: math.Cos(pitch) * math.Cos(yaw),
		Z: math.Sin(pitch),
	}
	right := r3.Cross(fwd, r3.Vec{Z: 1})
	if r3.Norm(right) < 1e-9 {
		right = r3.Vec{X: 1}
	}
	right = r3.Unit(right)
	up := r3.Cross(right, fwd)
	if roll != 0 {
		cr, sr := math.Cos(roll), math.Sin(roll)
		right, up = r3.Add(r3.Scale(cr, right), r3.Scale(sr, up)), r3.Sub(r3.Scale(cr, up), r3.Scale(sr, right))
	}
	fov := c.FOV
	if fov <= 0 {
		fov = 60
	}
	return view{
		eye:     r3.Sub(c.Target, r3.Scale(c.Distance, fwd)),
		forward: fwd,
		right:   right,
		up:      up,
		focal:   float64(height) / 2 / math.Tan(deg(fov)/2),
		cx:      float64(width) / 2,
		cy:      float64(height) / 2,
		near:    0.01,
	}
}

// project maps a world point to pixel coordinates. ok is false behind the
// near plane.
func (v view) project(p r3.Vec) (x, y, depth float64, ok bool) {
	d := r3.Sub(p, v.eye)
	depth = r3.Dot(d, v.forward)
	if depth < v.near {
		return 0, 0, depth, false
	}
	x = v.cx + r3.Dot(d, v.right)/depth*v.focal
	y = v.cy - r3.Dot(d, v.up)/depth*v.focal
	return x, y, depth, true
}

// Eye returns the camera position in world coordinates.
func (c Camera) Eye() r3.Vec {
	return c.view(1, 1).eye
}
