// Package spatial holds the pose and rotation helpers shared by the
// kinematics, engine and task layers. Quaternions are gonum quat.Number
// values; at the engine boundary they are exchanged as [x, y, z, w]
// slices.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrQuaternionShape  = errors.New("spatial: quaternion must have 4 components [x y z w]")
	ErrOrientationShape = errors.New("spatial: orientation must have 3 (euler) or 4 (quaternion) components")
	ErrVectorShape      = errors.New("spatial: vector must have 3 components")
)

// Pose is a rigid transform: rotate by Orientation, then translate by
// Position.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

func Identity() quat.Number {
	return quat.Number{Real: 1}
}

func NewPose(pos r3.Vec, orn quat.Number) Pose {
	return Pose{Position: pos, Orientation: Normalize(orn)}
}

func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

func FromAxisAngle(axis r3.Vec, angle float64) quat.Number {
	if r3.Norm(axis) == 0 {
		return Identity()
	}
	u := r3.Unit(axis)
	s := math.Sin(angle / 2)
	return quat.Number{Real: math.Cos(angle / 2), Imag: u.X * s, Jmag: u.Y * s, Kmag: u.Z * s}
}

// FromEuler converts roll (x), pitch (y), yaw (z) angles to a quaternion
// using the fixed-axis convention R = Rz(yaw) * Ry(pitch) * Rx(roll).
func FromEuler(roll, pitch, yaw float64) quat.Number {
	qx := FromAxisAngle(r3.Vec{X: 1}, roll)
	qy := FromAxisAngle(r3.Vec{Y: 1}, pitch)
	qz := FromAxisAngle(r3.Vec{Z: 1}, yaw)
	return quat.Mul(qz, quat.Mul(qy, qx))
}

// Rotate applies q to v (q v q*).
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Apply maps a point from the pose's local frame into its parent frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.Position, Rotate(p.Orientation, v))
}

func (p Pose) Inverse() Pose {
	inv := quat.Conj(p.Orientation)
	return Pose{Position: r3.Scale(-1, Rotate(inv, p.Position)), Orientation: inv}
}

// Compose returns a followed by b, i.e. the pose of b's frame expressed in
// a's parent frame.
func Compose(a, b Pose) Pose {
	return Pose{
		Position:    a.Apply(b.Position),
		Orientation: Normalize(quat.Mul(a.Orientation, b.Orientation)),
	}
}

// AngularDistance is the rotation angle in [0, pi] taking a to b.
func AngularDistance(a, b quat.Number) float64 {
	a, b = Normalize(a), Normalize(b)
	dot := math.Abs(a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag)
	return 2 * math.Acos(math.Min(1, dot))
}

func ToXYZW(q quat.Number) []float64 {
	return []float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

func FromXYZW(v []float64) (quat.Number, error) {
	if len(v) != 4 {
		return quat.Number{}, fmt.Errorf("%w: got %d", ErrQuaternionShape, len(v))
	}
	return Normalize(quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2], Real: v[3]}), nil
}

// OrientationFromSlice accepts either euler angles or an [x y z w]
// quaternion, the two forms the engine accepts for base orientations.
func OrientationFromSlice(v []float64) (quat.Number, error) {
	switch len(v) {
	case 3:
		return FromEuler(v[0], v[1], v[2]), nil
	case 4:
		return FromXYZW(v)
	default:
		return quat.Number{}, fmt.Errorf("%w: got %d", ErrOrientationShape, len(v))
	}
}

func Vec(v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("%w: got %d", ErrVectorShape, len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func Slice(v r3.Vec) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// FromRotation converts the upper-left 3x3 block of m to a quaternion.
func FromRotation(m mat.Matrix) quat.Number {
	r00, r01, r02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	r10, r11, r12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	r20, r21, r22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	var q quat.Number
	trace := r00 + r11 + r22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{Real: 0.25 / s, Imag: (r21 - r12) * s, Jmag: (r02 - r20) * s, Kmag: (r10 - r01) * s}
	case r00 > r11 && r00 > r22:
		s := 2 * math.Sqrt(1+r00-r11-r22)
		q = quat.Number{Real: (r21 - r12) / s, Imag: 0.25 * s, Jmag: (r01 + r10) / s, Kmag: (r02 + r20) / s}
	case r11 > r22:
		s := 2 * math.Sqrt(1+r11-r00-r22)
		q = quat.Number{Real: (r02 - r20) / s, Imag: (r01 + r10) / s, Jmag: 0.25 * s, Kmag: (r12 + r21) / s}
	default:
		s := 2 * math.Sqrt(1+r22-r00-r11)
		q = quat.Number{Real: (r10 - r01) / s, Imag: (r02 + r20) / s, Jmag: (r12 + r21) / s, Kmag: 0.25 * s}
	}
	return Normalize(q)
}

// FromTransform reads a 4x4 homogeneous transform.
func FromTransform(t mat.Matrix) Pose {
	return Pose{
		Position:    r3.Vec{X: t.At(0, 3), Y: t.At(1, 3), Z: t.At(2, 3)},
		Orientation: FromRotation(t),
	}
}

// Transform returns the 4x4 homogeneous matrix of p.
func (p Pose) Transform() *mat.Dense {
	x := Rotate(p.Orientation, r3.Vec{X: 1})
	y := Rotate(p.Orientation, r3.Vec{Y: 1})
	z := Rotate(p.Orientation, r3.Vec{Z: 1})
	return mat.NewDense(4, 4, []float64{
		x.X, y.X, z.X, p.Position.X,
		x.Y, y.Y, z.Y, p.Position.Y,
		x.Z, y.Z, z.Z, p.Position.Z,
		0, 0, 0, 1,
	})
}
