// Package optim tunes policy parameters by exhaustive grid search.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/experiment"
)

// Builder returns a runner whose policy is configured with params.
type Builder func(params map[string]float64) (*experiment.Runner, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize selects the largest metric value instead of the smallest.
	Maximize bool
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameters, %d ranges", dynamo.ErrDimensionMismatch, len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("%w: no values for %s", dynamo.ErrParameterBounds, params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// ParseGrid reads "name=v1,v2,..." specs.
func ParseGrid(specs []string) (*GridSearch, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("grid %q: want name=v1,v2", spec)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("grid %q: %w", spec, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return NewGridSearch(names, ranges)
}

// Size is the number of parameter combinations.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

func (g *GridSearch) better(v, best float64) bool {
	if g.Maximize {
		return v > best
	}
	return v < best
}

// Search runs every combination and returns the best parameters and their
// metric value.
func (g *GridSearch) Search(ctx context.Context, build Builder, run experiment.Config, metricName string) (map[string]float64, float64, error) {
	best := math.Inf(1)
	if g.Maximize {
		best = math.Inf(-1)
	}
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) error {
		r, err := build(params)
		if err != nil {
			return err
		}
		defer r.Close()

		result, err := r.Run(ctx, run)
		if err != nil {
			return err
		}
		val, ok := result.Metrics[metricName]
		if !ok {
			return fmt.Errorf("unknown metric: %s", metricName)
		}
		if bestParams == nil || g.better(val, best) {
			best = val
			bestParams = make(map[string]float64, len(params))
			for k, v := range params {
				bestParams[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		return visit(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}

// ApplyParams sets params on the runner's policy.
func ApplyParams(r *experiment.Runner, params map[string]float64) error {
	c, ok := r.Policy.(dynamo.Configurable)
	if !ok {
		if len(params) == 0 {
			return nil
		}
		return fmt.Errorf("policy %s is not tunable", r.Policy.Name())
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := c.SetParam(k, params[k]); err != nil {
			return err
		}
	}
	return nil
}
