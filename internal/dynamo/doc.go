// Package dynamo provides the numerical primitives shared by the arm
// engine and its integrators.
//
// The package defines the fundamental interfaces and types for stepping
// ordinary differential equations (dX/dt = f(X, u, t)):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems such as the joint servo model
//   - [Integrator]: numerical integrator interface
//   - [Configurable]: runtime parameter access used by sweeps
//
// # Example
//
//	servo := physics.NewServo(limits)
//	integ := integrators.NewRK4()
//	x = integ.Step(servo, x, targets, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Each engine owns its own integrator.
package dynamo
