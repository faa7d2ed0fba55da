// Package control provides baseline policies for the reaching
// environment.
//
// Policies map an observation to a normalised action:
//
//   - [Zero]: holds the current targets
//   - [Random]: samples the action space
//   - [Reacher]: PID on the task-space error, mapped to joints by damped
//     least squares and lifted away from the obstacle when clearance is low
//
// # Usage
//
//	p, _ := control.NewReacher(e, control.DefaultReacherOptions())
//	obs, _, _ := e.Reset(env.ResetOptions{})
//	action, _ := p.Act(obs)
//	obs, _, _, _, _, _ = e.Step(action)
//
// [PID] and [Reacher] implement [dynamo.Configurable] for sweeps.
package control
