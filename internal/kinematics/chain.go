// Package kinematics models serial arms as trees of links joined by
// revolute, prismatic or fixed joints in the modified (Craig) DH
// convention. Joint indices equal link indices, so a joint vector always
// has one entry per link and fixed links ignore theirs.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrInvalidChain  = errors.New("kinematics: invalid chain")
	ErrJointCount    = errors.New("kinematics: joint vector length does not match link count")
	ErrUnknownLink   = errors.New("kinematics: unknown link index")
	ErrNoConvergence = errors.New("kinematics: inverse kinematics did not converge")
)

type JointType int

const (
	Fixed JointType = iota
	Revolute
	Prismatic
)

func (j JointType) String() string {
	switch j {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	default:
		return "fixed"
	}
}

// Capsule is a swept sphere used for distance queries. With
// FromParentOrigin the segment runs from the parent frame origin to this
// link's origin; otherwise From and To are in the link frame.
type Capsule struct {
	From, To         r3.Vec
	Radius           float64
	FromParentOrigin bool
}

type Link struct {
	Name   string
	Parent int
	Joint  JointType

	A, D, Alpha, Theta0 float64

	// Axis is the prismatic translation direction in the link frame.
	Axis r3.Vec

	Lower, Upper float64
	MaxVelocity  float64
	MaxForce     float64

	Geometry *Capsule
}

func (l Link) Movable() bool {
	return l.Joint != Fixed
}

func (l Link) Clip(q float64) float64 {
	if !l.Movable() {
		return 0
	}
	return math.Max(l.Lower, math.Min(l.Upper, q))
}

type Chain struct {
	Links []Link
}

func NewChain(links []Link) (*Chain, error) {
	for i, l := range links {
		if l.Parent >= i || l.Parent < -1 {
			return nil, fmt.Errorf("%w: link %d (%s) has parent %d", ErrInvalidChain, i, l.Name, l.Parent)
		}
		if l.Movable() && l.Lower > l.Upper {
			return nil, fmt.Errorf("%w: link %d (%s) lower limit above upper", ErrInvalidChain, i, l.Name)
		}
	}
	return &Chain{Links: links}, nil
}

func (c *Chain) NumLinks() int {
	return len(c.Links)
}

func (c *Chain) Link(i int) (Link, error) {
	if i < 0 || i >= len(c.Links) {
		return Link{}, fmt.Errorf("%w: %d", ErrUnknownLink, i)
	}
	return c.Links[i], nil
}

// MovableJoints lists the indices of non-fixed joints in order.
func (c *Chain) MovableJoints() []int {
	idx := make([]int, 0, len(c.Links))
	for i, l := range c.Links {
		if l.Movable() {
			idx = append(idx, i)
		}
	}
	return idx
}

// ClipJoints clamps every entry of q to its joint limits in place.
func (c *Chain) ClipJoints(q []float64) {
	for i := range q {
		if i < len(c.Links) {
			q[i] = c.Links[i].Clip(q[i])
		}
	}
}

func dhTransform(a, d, alpha, theta float64) *mat.Dense {
	ca, sa := math.Cos(alpha), math.Sin(alpha)
	ct, st := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(4, 4, []float64{
		ct, -st, 0, a,
		st * ca, ct * ca, -sa, -d * sa,
		st * sa, ct * sa, ca, d * ca,
		0, 0, 0, 1,
	})
}

func translation(v r3.Vec) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, v.X,
		0, 1, 0, v.Y,
		0, 0, 1, v.Z,
		0, 0, 0, 1,
	})
}

// local returns the transform from the parent frame to link i at joint
// value q.
func (c *Chain) local(i int, q float64) *mat.Dense {
	l := c.Links[i]
	theta := l.Theta0
	if l.Joint == Revolute {
		theta += q
	}
	t := dhTransform(l.A, l.D, l.Alpha, theta)
	if l.Joint == Prismatic {
		var out mat.Dense
		out.Mul(t, translation(r3.Scale(q, l.Axis)))
		return &out
	}
	return t
}

// ForwardKinematics returns the world transform of every link.
func (c *Chain) ForwardKinematics(base spatial.Pose, q []float64) ([]*mat.Dense, error) {
	if len(q) != len(c.Links) {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrJointCount, len(q), len(c.Links))
	}
	root := base.Transform()
	frames := make([]*mat.Dense, len(c.Links))
	for i, l := range c.Links {
		parent := root
		if l.Parent >= 0 {
			parent = frames[l.Parent]
		}
		var t mat.Dense
		t.Mul(parent, c.local(i, q[i]))
		frames[i] = &t
	}
	return frames, nil
}

// LinkPose is a convenience over ForwardKinematics for a single link.
func (c *Chain) LinkPose(base spatial.Pose, q []float64, link int) (spatial.Pose, error) {
	if link < 0 || link >= len(c.Links) {
		return spatial.Pose{}, fmt.Errorf("%w: %d", ErrUnknownLink, link)
	}
	frames, err := c.ForwardKinematics(base, q)
	if err != nil {
		return spatial.Pose{}, err
	}
	return spatial.FromTransform(frames[link]), nil
}

// Origin returns the translation column of a 4x4 transform.
func Origin(t mat.Matrix) r3.Vec {
	return r3.Vec{X: t.At(0, 3), Y: t.At(1, 3), Z: t.At(2, 3)}
}

func column(t mat.Matrix, j int) r3.Vec {
	return r3.Vec{X: t.At(0, j), Y: t.At(1, j), Z: t.At(2, j)}
}

// CapsuleSegment returns the world endpoints of link i's capsule. ok is
// false when the link carries no geometry.
func (c *Chain) CapsuleSegment(frames []*mat.Dense, base spatial.Pose, i int) (a, b r3.Vec, radius float64, ok bool) {
	g := c.Links[i].Geometry
	if g == nil {
		return r3.Vec{}, r3.Vec{}, 0, false
	}
	pose := spatial.FromTransform(frames[i])
	if g.FromParentOrigin {
		from := base.Position
		if p := c.Links[i].Parent; p >= 0 {
			from = Origin(frames[p])
		}
		return from, pose.Position, g.Radius, true
	}
	return pose.Apply(g.From), pose.Apply(g.To), g.Radius, true
}

func (c *Chain) isAncestor(j, link int) bool {
	for i := link; i >= 0; i = c.Links[i].Parent {
		if i == j {
			return true
		}
	}
	return false
}
