package kinematics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Panda link indices.
const (
	PandaFlange      = 7
	PandaHand        = 8
	PandaLeftFinger  = 9
	PandaRightFinger = 10
	PandaGraspTarget = 11
)

// PandaArmJoints are the seven revolute arm joints.
var PandaArmJoints = []int{0, 1, 2, 3, 4, 5, 6}

// PandaFingerJoints are the two prismatic finger joints.
var PandaFingerJoints = []int{PandaLeftFinger, PandaRightFinger}

// Panda builds the Franka Emika Panda tree: seven arm links, flange,
// hand, two fingers and the grasp target between the fingertips.
func Panda() *Chain {
	const (
		pi2       = math.Pi / 2
		fingerLen = 0.045
	)
	type row struct {
		name              string
		a, d, alpha       float64
		lower, upper, vel float64
		force, radius     float64
	}
	arm := []row{
		{"panda_link1", 0, 0.333, 0, -2.8973, 2.8973, 2.175, 87, 0.06},
		{"panda_link2", 0, 0, -pi2, -1.7628, 1.7628, 2.175, 87, 0.06},
		{"panda_link3", 0, 0.316, pi2, -2.8973, 2.8973, 2.175, 87, 0.06},
		{"panda_link4", 0.0825, 0, pi2, -3.0718, -0.0698, 2.175, 87, 0.055},
		{"panda_link5", -0.0825, 0.384, -pi2, -2.8973, 2.8973, 2.61, 12, 0.055},
		{"panda_link6", 0, 0, pi2, -0.0175, 3.7525, 2.61, 120, 0.05},
		{"panda_link7", 0.088, 0, pi2, -2.8973, 2.8973, 2.61, 120, 0.045},
	}

	links := make([]Link, 0, 12)
	for i, r := range arm {
		links = append(links, Link{
			Name:        r.name,
			Parent:      i - 1,
			Joint:       Revolute,
			A:           r.a,
			D:           r.d,
			Alpha:       r.alpha,
			Lower:       r.lower,
			Upper:       r.upper,
			MaxVelocity: r.vel,
			MaxForce:    r.force,
			Geometry:    &Capsule{Radius: r.radius, FromParentOrigin: true},
		})
	}

	links = append(links,
		Link{
			Name:     "panda_link8",
			Parent:   6,
			Joint:    Fixed,
			D:        0.107,
			Geometry: &Capsule{Radius: 0.04, FromParentOrigin: true},
		},
		Link{
			Name:   "panda_hand",
			Parent: PandaFlange,
			Joint:  Fixed,
			Theta0: -math.Pi / 4,
			Geometry: &Capsule{
				From:   r3.Vec{Y: -0.09, Z: 0.03},
				To:     r3.Vec{Y: 0.09, Z: 0.03},
				Radius: 0.03,
			},
		},
		Link{
			Name:        "panda_leftfinger",
			Parent:      PandaHand,
			Joint:       Prismatic,
			D:           0.0584,
			Axis:        r3.Vec{Y: 1},
			Upper:       0.04,
			MaxVelocity: 0.2,
			MaxForce:    170,
			Geometry: &Capsule{
				From:   r3.Vec{Y: 0.01},
				To:     r3.Vec{Y: 0.01, Z: fingerLen},
				Radius: 0.01,
			},
		},
		Link{
			Name:        "panda_rightfinger",
			Parent:      PandaHand,
			Joint:       Prismatic,
			D:           0.0584,
			Axis:        r3.Vec{Y: -1},
			Upper:       0.04,
			MaxVelocity: 0.2,
			MaxForce:    170,
			Geometry: &Capsule{
				From:   r3.Vec{Y: -0.01},
				To:     r3.Vec{Y: -0.01, Z: fingerLen},
				Radius: 0.01,
			},
		},
		Link{
			Name:   "panda_grasptarget",
			Parent: PandaHand,
			Joint:  Fixed,
			D:      0.1034,
		},
	)

	// The link rows are constant; NewChain only fails on malformed input.
	c, err := NewChain(links)
	if err != nil {
		panic(err)
	}
	return c
}
