// Package physics is a small kinematic engine for articulated arms in a
// static scene.
//
// Bodies are either free primitives placed by the caller or arms built
// from a [kinematics.Chain]. Arm joints are driven by a saturated PD
// servo ([Servo]) integrated with any [dynamo.Integrator]:
//
//	eng := physics.NewEngine(physics.Direct)
//	arm, _ := eng.LoadArm("panda", kinematics.Panda(), base)
//	_ = eng.SetJointMotorControlArray(arm, joints, targets, forces)
//	_ = eng.StepSimulation()
//
// There is no contact resolution. [Engine.ClosestPoints] measures signed
// distances between link capsules and convex collision shapes so callers
// can detect and penalise collisions themselves.
//
// An Engine is not safe for concurrent use.
package physics
