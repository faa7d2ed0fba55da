package kinematics

import (
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Jacobian returns the 6 x len(joints) geometric Jacobian of link's
// origin. Rows are linear velocity then angular velocity; columns for
// joints that do not move link are zero.
func (c *Chain) Jacobian(base spatial.Pose, q []float64, link int, joints []int) (*mat.Dense, error) {
	if link < 0 || link >= len(c.Links) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLink, link)
	}
	frames, err := c.ForwardKinematics(base, q)
	if err != nil {
		return nil, err
	}
	return c.jacobian(frames, link, joints), nil
}

func (c *Chain) jacobian(frames []*mat.Dense, link int, joints []int) *mat.Dense {
	j := mat.NewDense(6, len(joints), nil)
	pe := Origin(frames[link])
	for col, ji := range joints {
		if ji < 0 || ji >= len(c.Links) || !c.isAncestor(ji, link) {
			continue
		}
		l := c.Links[ji]
		switch l.Joint {
		case Revolute:
			z := column(frames[ji], 2)
			v := r3.Cross(z, r3.Sub(pe, Origin(frames[ji])))
			j.Set(0, col, v.X)
			j.Set(1, col, v.Y)
			j.Set(2, col, v.Z)
			j.Set(3, col, z.X)
			j.Set(4, col, z.Y)
			j.Set(5, col, z.Z)
		case Prismatic:
			axis := spatial.Rotate(spatial.FromTransform(frames[ji]).Orientation, l.Axis)
			j.Set(0, col, axis.X)
			j.Set(1, col, axis.Y)
			j.Set(2, col, axis.Z)
		}
	}
	return j
}

type IKOptions struct {
	// Joints are the columns solved for; other joints keep their value.
	Joints        []int
	MaxIterations int
	Tolerance     float64
	Damping       float64
	// MaxStep bounds the per-iteration joint change (rad or m).
	MaxStep      float64
	PositionOnly bool
}

func DefaultIKOptions(joints []int) IKOptions {
	return IKOptions{
		Joints:        joints,
		MaxIterations: 200,
		Tolerance:     1e-4,
		Damping:       0.05,
		MaxStep:       0.2,
		PositionOnly:  true,
	}
}

// poseError stacks the position error and, unless positionOnly, the
// rotation error as an axis-angle vector.
func poseError(cur, target spatial.Pose, positionOnly bool) *mat.VecDense {
	dp := r3.Sub(target.Position, cur.Position)
	if positionOnly {
		return mat.NewVecDense(3, []float64{dp.X, dp.Y, dp.Z})
	}
	qe := quat.Mul(target.Orientation, quat.Conj(cur.Orientation))
	if qe.Real < 0 {
		qe = quat.Scale(-1, qe)
	}
	return mat.NewVecDense(6, []float64{dp.X, dp.Y, dp.Z, 2 * qe.Imag, 2 * qe.Jmag, 2 * qe.Kmag})
}

// InverseKinematics solves for joint values placing link at target with
// damped least squares: dq = J^T (J J^T + λ²I)^-1 e. The best solution
// found is returned even when the tolerance is not met, together with an
// error wrapping ErrNoConvergence.
func (c *Chain) InverseKinematics(base spatial.Pose, q0 []float64, link int, target spatial.Pose, opts IKOptions) ([]float64, error) {
	if len(q0) != len(c.Links) {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrJointCount, len(q0), len(c.Links))
	}
	if link < 0 || link >= len(c.Links) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLink, link)
	}
	q := make([]float64, len(q0))
	copy(q, q0)

	best := make([]float64, len(q))
	bestErr := math.Inf(1)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		frames, err := c.ForwardKinematics(base, q)
		if err != nil {
			return nil, err
		}
		e := poseError(spatial.FromTransform(frames[link]), target, opts.PositionOnly)
		norm := mat.Norm(e, 2)
		if norm < bestErr {
			bestErr = norm
			copy(best, q)
		}
		if norm < opts.Tolerance {
			return best, nil
		}

		full := c.jacobian(frames, link, opts.Joints)
		rows := e.Len()
		j := full.Slice(0, rows, 0, len(opts.Joints))

		var jjt mat.Dense
		jjt.Mul(j, j.T())
		lambda2 := opts.Damping * opts.Damping
		for i := 0; i < rows; i++ {
			jjt.Set(i, i, jjt.At(i, i)+lambda2)
		}

		var y mat.VecDense
		if err := y.SolveVec(&jjt, e); err != nil {
			return best, fmt.Errorf("%w: %v", ErrNoConvergence, err)
		}
		var dq mat.VecDense
		dq.MulVec(j.T(), &y)

		if n := mat.Norm(&dq, math.Inf(1)); opts.MaxStep > 0 && n > opts.MaxStep {
			dq.ScaleVec(opts.MaxStep/n, &dq)
		}
		for col, ji := range opts.Joints {
			q[ji] = c.Links[ji].Clip(q[ji] + dq.AtVec(col))
		}
	}
	return best, fmt.Errorf("%w: residual %.6f after %d iterations", ErrNoConvergence, bestErr, opts.MaxIterations)
}
