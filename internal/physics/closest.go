package physics

import (
	"fmt"

	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

type ContactPoint struct {
	BodyA, BodyB BodyID
	LinkA        int
	PositionOnA  r3.Vec
	PositionOnB  r3.Vec
	// Distance is negative when the shapes overlap.
	Distance float64
}

// searchIterations shrinks the bracket by (2/3)^80, well below 1e-12.
const searchIterations = 80

type segment struct {
	a, b   r3.Vec
	radius float64
	link   int
}

// ClosestPoints reports, for every swept link segment of body a (or only
// linkA when it is non-negative), the closest point pair to the
// collision shape of body b, omitting pairs farther apart than
// maxDistance. Bodies without collision geometry yield no points.
func (e *Engine) ClosestPoints(a, b BodyID, maxDistance float64, linkA int) ([]ContactPoint, error) {
	ba, err := e.body(a)
	if err != nil {
		return nil, err
	}
	bb, err := e.body(b)
	if err != nil {
		return nil, err
	}
	if bb.spec.Collision == nil {
		return nil, nil
	}

	segs, err := ba.segments(linkA)
	if err != nil {
		return nil, err
	}

	var points []ContactPoint
	for _, s := range segs {
		cp := closestToShape(s, bb.spec.Collision, bb.pose)
		if cp.Distance > maxDistance {
			continue
		}
		cp.BodyA, cp.BodyB = a, b
		points = append(points, cp)
	}
	return points, nil
}

func (b *body) segments(link int) ([]segment, error) {
	if b.arm == nil {
		if link >= 0 {
			return nil, fmt.Errorf("%w: %d on body without links", ErrUnknownLink, link)
		}
		sphere, ok := b.spec.Collision.(Sphere)
		if !ok {
			return nil, nil
		}
		return []segment{{a: b.pose.Position, b: b.pose.Position, radius: sphere.Radius, link: -1}}, nil
	}

	c := b.arm.chain
	if link >= c.NumLinks() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLink, link)
	}
	var segs []segment
	for i := range c.Links {
		if link >= 0 && i != link {
			continue
		}
		p, q, r, ok := c.CapsuleSegment(b.arm.frames, b.pose, i)
		if !ok {
			continue
		}
		segs = append(segs, segment{a: p, b: q, radius: r, link: i})
	}
	return segs, nil
}

// closestToShape minimises the signed distance from the segment to a
// convex shape. The signed distance to a convex set is convex along a
// line, so a ternary search over the segment parameter is exact.
func closestToShape(s segment, shape Shape, pose spatial.Pose) ContactPoint {
	inv := pose.Inverse()
	dir := r3.Sub(s.b, s.a)
	at := func(t float64) r3.Vec { return r3.Add(s.a, r3.Scale(t, dir)) }
	f := func(t float64) float64 { return shape.SignedDistance(inv.Apply(at(t))) }

	lo, hi := 0.0, 1.0
	if r3.Norm(dir) > 0 {
		for i := 0; i < searchIterations; i++ {
			m1 := lo + (hi-lo)/3
			m2 := hi - (hi-lo)/3
			if f(m1) <= f(m2) {
				hi = m2
			} else {
				lo = m1
			}
		}
	}
	t := (lo + hi) / 2
	p := at(t)
	onB := pose.Apply(shape.ClosestPoint(inv.Apply(p)))

	d := shape.SignedDistance(inv.Apply(p))
	normal := r3.Sub(onB, p)
	if n := r3.Norm(normal); n > 0 {
		normal = r3.Scale(1/n, normal)
		if d < 0 {
			normal = r3.Scale(-1, normal)
		}
	}
	return ContactPoint{
		LinkA:       s.link,
		PositionOnA: r3.Add(p, r3.Scale(s.radius, normal)),
		PositionOnB: onB,
		Distance:    d - s.radius,
	}
}

// Primitive is a renderable body snapshot.
type Primitive struct {
	Name  string
	Shape Shape
	Pose  spatial.Pose
	Color Color
	Ghost bool
}

type Capsule struct {
	A, B   r3.Vec
	Radius float64
}

type Scene struct {
	Primitives []Primitive
	Capsules   []Capsule
}

// Snapshot returns the current geometry of every body for drawing.
func (e *Engine) Snapshot() Scene {
	var sc Scene
	for _, b := range e.bodies {
		if b.arm == nil {
			if b.spec.Visual == nil {
				continue
			}
			sc.Primitives = append(sc.Primitives, Primitive{
				Name:  b.spec.Name,
				Shape: b.spec.Visual,
				Pose:  b.pose,
				Color: b.spec.Color,
				Ghost: b.spec.Collision == nil,
			})
			continue
		}
		segs, _ := b.segments(-1)
		for _, s := range segs {
			sc.Capsules = append(sc.Capsules, Capsule{A: s.a, B: s.b, Radius: s.radius})
		}
	}
	return sc
}
