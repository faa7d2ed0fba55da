package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCylinder
	ShapePlane
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	case ShapePlane:
		return "plane"
	}
	return "unknown"
}

// Shape is a convex primitive centred on its body frame. Distances and
// points are expressed in that frame.
type Shape interface {
	Kind() ShapeKind
	SignedDistance(p r3.Vec) float64
	ClosestPoint(p r3.Vec) r3.Vec
}

type Box struct {
	HalfExtents r3.Vec
}

func (Box) Kind() ShapeKind { return ShapeBox }

func (b Box) SignedDistance(p r3.Vec) float64 {
	qx := math.Abs(p.X) - b.HalfExtents.X
	qy := math.Abs(p.Y) - b.HalfExtents.Y
	qz := math.Abs(p.Z) - b.HalfExtents.Z
	outside := r3.Norm(r3.Vec{X: math.Max(qx, 0), Y: math.Max(qy, 0), Z: math.Max(qz, 0)})
	inside := math.Min(math.Max(qx, math.Max(qy, qz)), 0)
	return outside + inside
}

func (b Box) ClosestPoint(p r3.Vec) r3.Vec {
	h := b.HalfExtents
	c := r3.Vec{
		X: clamp(p.X, -h.X, h.X),
		Y: clamp(p.Y, -h.Y, h.Y),
		Z: clamp(p.Z, -h.Z, h.Z),
	}
	if c != p {
		return c
	}
	// Inside: project onto the nearest face.
	dx, dy, dz := h.X-math.Abs(p.X), h.Y-math.Abs(p.Y), h.Z-math.Abs(p.Z)
	switch {
	case dx <= dy && dx <= dz:
		c.X = math.Copysign(h.X, p.X)
	case dy <= dz:
		c.Y = math.Copysign(h.Y, p.Y)
	default:
		c.Z = math.Copysign(h.Z, p.Z)
	}
	return c
}

type Sphere struct {
	Radius float64
}

func (Sphere) Kind() ShapeKind { return ShapeSphere }

func (s Sphere) SignedDistance(p r3.Vec) float64 {
	return r3.Norm(p) - s.Radius
}

func (s Sphere) ClosestPoint(p r3.Vec) r3.Vec {
	n := r3.Norm(p)
	if n == 0 {
		return r3.Vec{Z: s.Radius}
	}
	return r3.Scale(s.Radius/n, p)
}

// Cylinder is aligned with the local z axis.
type Cylinder struct {
	Radius float64
	Length float64
}

func (Cylinder) Kind() ShapeKind { return ShapeCylinder }

func (c Cylinder) SignedDistance(p r3.Vec) float64 {
	dr := math.Hypot(p.X, p.Y) - c.Radius
	dz := math.Abs(p.Z) - c.Length/2
	outside := math.Hypot(math.Max(dr, 0), math.Max(dz, 0))
	return outside + math.Min(math.Max(dr, dz), 0)
}

func (c Cylinder) ClosestPoint(p r3.Vec) r3.Vec {
	rho := math.Hypot(p.X, p.Y)
	half := c.Length / 2
	radial := func(r float64) (float64, float64) {
		if rho == 0 {
			return r, 0
		}
		return p.X * r / rho, p.Y * r / rho
	}
	if rho > c.Radius || math.Abs(p.Z) > half {
		x, y := radial(math.Min(rho, c.Radius))
		return r3.Vec{X: x, Y: y, Z: clamp(p.Z, -half, half)}
	}
	if c.Radius-rho < half-math.Abs(p.Z) {
		x, y := radial(c.Radius)
		return r3.Vec{X: x, Y: y, Z: p.Z}
	}
	return r3.Vec{X: p.X, Y: p.Y, Z: math.Copysign(half, p.Z)}
}

// Plane is the z=0 half space with normal +z.
type Plane struct{}

func (Plane) Kind() ShapeKind { return ShapePlane }

func (Plane) SignedDistance(p r3.Vec) float64 { return p.Z }

func (Plane) ClosestPoint(p r3.Vec) r3.Vec { return r3.Vec{X: p.X, Y: p.Y} }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
