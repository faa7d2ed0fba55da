package env

// Transition is one recorded Step.
type Transition struct {
	Episode     int
	Step        int
	Observation Observation
	Action      []float64
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Clearance is the smallest probe distance to the obstacle.
func (t Transition) Clearance() float64 {
	if len(t.Observation.ObstacleDist) == 0 {
		return 0
	}
	m := t.Observation.ObstacleDist[0]
	for _, d := range t.Observation.ObstacleDist[1:] {
		m = min(m, d)
	}
	return float64(m)
}

// Done reports whether the episode ended at this transition.
func (t Transition) Done() bool { return t.Terminated || t.Truncated }
