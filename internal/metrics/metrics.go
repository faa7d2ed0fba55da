// Package metrics aggregates episodic statistics over recorded
// transitions.
package metrics

import "github.com/san-kum/reachenv/internal/env"

type Metric interface {
	Name() string
	Observe(tr env.Transition)
	Value() float64
	Reset()
}

// Defaults returns one instance of every episodic metric.
func Defaults() []Metric {
	return []Metric{
		NewSuccessRate(),
		NewCollisionRate(),
		NewMeanReturn(),
		NewMeanLength(),
		NewMinClearance(),
		NewActionEffort(),
	}
}

// Values collects the metrics by name.
func Values(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// episodes counts finished episodes and those satisfying a predicate.
type episodes struct {
	name  string
	hit   func(env.Transition) bool
	done  int
	count int
}

func (e *episodes) Name() string { return e.name }

func (e *episodes) Observe(tr env.Transition) {
	if !tr.Done() {
		return
	}
	e.done++
	if e.hit(tr) {
		e.count++
	}
}

func (e *episodes) Value() float64 {
	if e.done == 0 {
		return 0
	}
	return float64(e.count) / float64(e.done)
}

func (e *episodes) Reset() {
	e.done = 0
	e.count = 0
}

// NewSuccessRate is the fraction of episodes ending in success.
func NewSuccessRate() Metric {
	return &episodes{name: "success_rate", hit: func(tr env.Transition) bool { return tr.Info.IsSuccess }}
}

// NewCollisionRate is the fraction of episodes ending in a collision.
func NewCollisionRate() Metric {
	return &episodes{name: "collision_rate", hit: func(tr env.Transition) bool { return tr.Info.IsCollision }}
}

type MeanReturn struct {
	current  float64
	total    float64
	episodes int
}

func NewMeanReturn() *MeanReturn { return &MeanReturn{} }

func (m *MeanReturn) Name() string { return "mean_return" }

func (m *MeanReturn) Observe(tr env.Transition) {
	m.current += tr.Reward
	if tr.Done() {
		m.total += m.current
		m.current = 0
		m.episodes++
	}
}

func (m *MeanReturn) Value() float64 {
	if m.episodes == 0 {
		return 0
	}
	return m.total / float64(m.episodes)
}

func (m *MeanReturn) Reset() { *m = MeanReturn{} }

type MeanLength struct {
	steps    int
	episodes int
}

func NewMeanLength() *MeanLength { return &MeanLength{} }

func (m *MeanLength) Name() string { return "mean_length" }

func (m *MeanLength) Observe(tr env.Transition) {
	m.steps++
	if tr.Done() {
		m.episodes++
	}
}

func (m *MeanLength) Value() float64 {
	if m.episodes == 0 {
		return 0
	}
	return float64(m.steps) / float64(m.episodes)
}

func (m *MeanLength) Reset() { *m = MeanLength{} }

type MinClearance struct {
	min  float64
	seen bool
}

func NewMinClearance() *MinClearance { return &MinClearance{} }

func (m *MinClearance) Name() string { return "min_clearance" }

func (m *MinClearance) Observe(tr env.Transition) {
	c := tr.Clearance()
	if !m.seen || c < m.min {
		m.min = c
		m.seen = true
	}
}

func (m *MinClearance) Value() float64 {
	return m.min
}

func (m *MinClearance) Reset() { *m = MinClearance{} }
