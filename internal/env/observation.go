package env

const (
	KeyRobotPos     = "robot_pos"
	KeyObstacleDist = "obstacle_dist"
	KeyAchieved     = "achieved_goal"
	KeyDesired      = "desired_goal"
)

// Observation holds float32 values like the policies that consume it.
type Observation struct {
	RobotPos     []float32
	ObstacleDist []float32
	AchievedGoal []float32
	DesiredGoal  []float32
}

func (o Observation) Map() map[string][]float32 {
	return map[string][]float32{
		KeyRobotPos:     o.RobotPos,
		KeyObstacleDist: o.ObstacleDist,
		KeyAchieved:     o.AchievedGoal,
		KeyDesired:      o.DesiredGoal,
	}
}

func (o Observation) Float64() map[string][]float64 {
	m := o.Map()
	out := make(map[string][]float64, len(m))
	for k, v := range m {
		out[k] = Float64s(v)
	}
	return out
}

func Float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func Float64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// observation keeps the float64 goals next to the exported float32 view
// so success and reward use full precision.
type observation struct {
	Observation
	achieved []float64
	desired  []float64
}

func (e *Env) observe() (observation, error) {
	robotPos, err := e.robot.Obs()
	if err != nil {
		return observation{}, err
	}
	dist, err := e.sim.Distances()
	if err != nil {
		return observation{}, err
	}
	achieved, err := e.task.AchievedGoal()
	if err != nil {
		return observation{}, err
	}
	desired := e.task.Goal()

	o := observation{
		Observation: Observation{
			RobotPos:     Float32s(robotPos),
			ObstacleDist: Float32s(dist),
			AchievedGoal: Float32s(achieved),
			DesiredGoal:  Float32s(desired),
		},
		achieved: achieved,
		desired:  desired,
	}
	e.lastObs = o.Observation
	return o, nil
}
