package viz

import (
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane selects the two world axes a view keeps.
type Plane string

const (
	PlaneXY Plane = "xy"
	PlaneXZ Plane = "xz"
)

func ParsePlane(s string) (Plane, error) {
	switch Plane(s) {
	case PlaneXY, PlaneXZ:
		return Plane(s), nil
	}
	return "", fmt.Errorf("viz: unknown plane %q, want xy or xz", s)
}

// Coords returns the horizontal and vertical world coordinates of v.
func (p Plane) Coords(v r3.Vec) (float64, float64) {
	if p == PlaneXZ {
		return v.X, v.Z
	}
	return v.X, v.Y
}

// Bounds is the world window [MinU, MaxU] x [MinV, MaxV] of a view.
type Bounds struct {
	MinU, MaxU, MinV, MaxV float64
}

// DefaultBounds frames the arm workspace for each plane.
func DefaultBounds(p Plane) Bounds {
	if p == PlaneXZ {
		return Bounds{MinU: -0.2, MaxU: 1.0, MinV: -0.05, MaxV: 1.0}
	}
	return Bounds{MinU: -0.2, MaxU: 1.0, MinV: -0.5, MaxV: 0.5}
}

// View maps world points onto a canvas with equal scale on both axes.
type View struct {
	Plane  Plane
	Bounds Bounds
	Canvas *Canvas
	scale  float64
	offU   float64
	offV   float64
}

func NewView(p Plane, b Bounds, c *Canvas) *View {
	w, h := c.Dots()
	su := float64(w-1) / (b.MaxU - b.MinU)
	sv := float64(h-1) / (b.MaxV - b.MinV)
	scale := math.Min(su, sv)
	return &View{
		Plane:  p,
		Bounds: b,
		Canvas: c,
		scale:  scale,
		offU:   (float64(w-1) - scale*(b.MaxU-b.MinU)) / 2,
		offV:   (float64(h-1) - scale*(b.MaxV-b.MinV)) / 2,
	}
}

// Dot returns the canvas dot of a world point; v grows upwards.
func (v *View) Dot(p r3.Vec) (int, int) {
	u, w := v.Plane.Coords(p)
	_, h := v.Canvas.Dots()
	x := v.offU + (u-v.Bounds.MinU)*v.scale
	y := float64(h-1) - v.offV - (w-v.Bounds.MinV)*v.scale
	return int(math.Round(x)), int(math.Round(y))
}

func (v *View) Segment(a, b r3.Vec) {
	x0, y0 := v.Dot(a)
	x1, y1 := v.Dot(b)
	v.Canvas.DrawLine(x0, y0, x1, y1)
}

func (v *View) Circle(center r3.Vec, radius float64) {
	x, y := v.Dot(center)
	v.Canvas.DrawCircle(x, y, int(math.Round(radius*v.scale)))
}

// Scene draws the arm capsules as centre lines, boxes as their projected
// footprint and spheres as circles. The ground plane is skipped.
func (v *View) Scene(sc physics.Scene) {
	for _, p := range sc.Primitives {
		if p.Name == sim.PlaneBody {
			continue
		}
		switch s := p.Shape.(type) {
		case physics.Box:
			v.box(p, s)
		case physics.Sphere:
			v.Circle(p.Pose.Position, s.Radius)
		case physics.Cylinder:
			v.Circle(p.Pose.Position, s.Radius)
		}
	}
	for _, c := range sc.Capsules {
		v.Segment(c.A, c.B)
	}
}

func (v *View) box(p physics.Primitive, b physics.Box) {
	h := b.HalfExtents
	lo := [2]float64{math.Inf(1), math.Inf(1)}
	hi := [2]float64{math.Inf(-1), math.Inf(-1)}
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				u, w := v.Plane.Coords(p.Pose.Apply(r3.Vec{X: sx * h.X, Y: sy * h.Y, Z: sz * h.Z}))
				lo[0], hi[0] = math.Min(lo[0], u), math.Max(hi[0], u)
				lo[1], hi[1] = math.Min(lo[1], w), math.Max(hi[1], w)
			}
		}
	}
	a := v.fromCoords(lo[0], lo[1])
	b2 := v.fromCoords(hi[0], hi[1])
	x0, y0 := v.Dot(a)
	x1, y1 := v.Dot(b2)
	v.Canvas.DrawRect(x0, y0, x1, y1)
}

func (v *View) fromCoords(u, w float64) r3.Vec {
	if v.Plane == PlaneXZ {
		return r3.Vec{X: u, Z: w}
	}
	return r3.Vec{X: u, Y: w}
}
