package metrics

import (
	"math"

	"github.com/san-kum/reachenv/internal/env"
)

// ActionEffort is the mean L1 norm of the actions.
type ActionEffort struct {
	name    string
	sum     float64
	samples int
}

func NewActionEffort() *ActionEffort {
	return &ActionEffort{
		name: "action_effort",
	}
}

func (c *ActionEffort) Name() string {
	return c.name
}

func (c *ActionEffort) Observe(tr env.Transition) {
	for _, val := range tr.Action {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ActionEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ActionEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
