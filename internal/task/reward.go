package task

import (
	"fmt"
	"math"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CheckGoals reports whether achieved and desired have matching lengths
// of 3 or 7 components.
func CheckGoals(achieved, desired []float64) error {
	if len(achieved) != len(desired) {
		return fmt.Errorf("%w: achieved goal has %d components, desired %d", dynamo.ErrDimensionMismatch, len(achieved), len(desired))
	}
	if len(achieved) != 3 && len(achieved) != 7 {
		return fmt.Errorf("%w: got %d", ErrGoalShape, len(achieved))
	}
	return nil
}

// Distances returns the position distance and, when both goals carry a
// quaternion, the angular distance between them. Both goals must have at
// least 3 components; see CheckGoals.
func Distances(achieved, desired []float64) (pos, ang float64) {
	pos = floats.Distance(achieved[:3], desired[:3], 2)
	if len(achieved) >= 7 && len(desired) >= 7 {
		a, errA := spatial.FromXYZW(achieved[3:7])
		b, errB := spatial.FromXYZW(desired[3:7])
		if errA == nil && errB == nil {
			ang = spatial.AngularDistance(a, b)
		}
	}
	return pos, ang
}

func (t *Reach) IsSuccess(achieved, desired []float64) bool {
	d, ang := Distances(achieved, desired)
	if d >= t.params.DistanceThreshold {
		return false
	}
	if t.params.OrientationTask {
		return ang < t.params.OrientationThreshold
	}
	return true
}

// ComputeReward scores one transition. clearance is the smallest
// obstacle distance measured for it. Goals must pass CheckGoals.
func (t *Reach) ComputeReward(achieved, desired []float64, info Info, clearance float64) float64 {
	var r float64
	switch t.params.RewardType {
	case Sparse:
		r = -1
		if t.IsSuccess(achieved, desired) {
			r = 0
		}
	default:
		d, ang := Distances(achieved, desired)
		r = -d
		if t.params.OrientationTask {
			r -= t.params.OrientationWeight * ang
		}
	}
	if info.IsCollision {
		r -= t.params.CollisionPenalty
	}
	if clearance < t.params.SafetyDistance {
		r -= t.params.ProximityWeight * (t.params.SafetyDistance - clearance)
	}
	return r
}

// ComputeRewards is the batched form of ComputeReward with one goal per
// row. infos and clearances may be nil, meaning no collision and no
// proximity penalty; otherwise they need one entry per row.
func (t *Reach) ComputeRewards(achieved, desired mat.Matrix, infos []Info, clearances []float64) ([]float64, error) {
	rows, cols := achieved.Dims()
	if r, c := desired.Dims(); r != rows || c != cols {
		return nil, fmt.Errorf("%w: achieved goals %dx%d, desired %dx%d", dynamo.ErrDimensionMismatch, rows, cols, r, c)
	}
	if cols != 3 && cols != 7 {
		return nil, fmt.Errorf("%w: got %d columns", ErrGoalShape, cols)
	}
	if infos != nil && len(infos) != rows {
		return nil, fmt.Errorf("%w: %d infos for %d goals", dynamo.ErrDimensionMismatch, len(infos), rows)
	}
	if clearances != nil && len(clearances) != rows {
		return nil, fmt.Errorf("%w: %d clearances for %d goals", dynamo.ErrDimensionMismatch, len(clearances), rows)
	}

	out := make([]float64, rows)
	a := make([]float64, cols)
	d := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(a, i, achieved)
		mat.Row(d, i, desired)
		var info Info
		if infos != nil {
			info = infos[i]
		}
		clearance := math.Inf(1)
		if clearances != nil {
			clearance = clearances[i]
		}
		out[i] = t.ComputeReward(a, d, info, clearance)
	}
	return out, nil
}
