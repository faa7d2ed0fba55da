// Package spaces describes the shape and bounds of observations and
// actions, and samples from them reproducibly.
package spaces

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

var (
	ErrBounds  = errors.New("spaces: invalid bounds")
	ErrUnknown = errors.New("spaces: unknown key")
)

// Box is the closed hyperrectangle [Low, High].
type Box struct {
	Low  []float64
	High []float64

	rng *distmv.Uniform
}

func NewBox(low, high []float64) (*Box, error) {
	if len(low) != len(high) {
		return nil, fmt.Errorf("%w: %d lower and %d upper bounds", ErrBounds, len(low), len(high))
	}
	for i := range low {
		if !(low[i] <= high[i]) || math.IsInf(low[i], 0) || math.IsInf(high[i], 0) {
			return nil, fmt.Errorf("%w: dimension %d has [%g, %g]", ErrBounds, i, low[i], high[i])
		}
	}
	b := &Box{Low: append([]float64(nil), low...), High: append([]float64(nil), high...)}
	b.Seed(0)
	return b, nil
}

// UniformBox is a Box of dim dimensions sharing the same bounds.
func UniformBox(low, high float64, dim int) *Box {
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for i := range lo {
		lo[i], hi[i] = low, high
	}
	b, err := NewBox(lo, hi)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Box) Dim() int {
	return len(b.Low)
}

func (b *Box) Seed(seed uint64) {
	bounds := make([]r1.Interval, len(b.Low))
	for i := range bounds {
		bounds[i] = r1.Interval{Min: b.Low[i], Max: b.High[i]}
	}
	b.rng = distmv.NewUniform(bounds, rand.NewSource(seed))
}

func (b *Box) Sample() []float64 {
	return b.rng.Rand(nil)
}

func (b *Box) Contains(x []float64) bool {
	if len(x) != len(b.Low) {
		return false
	}
	for i, v := range x {
		if v < b.Low[i] || v > b.High[i] || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Clip returns a copy of x clamped to the box.
func (b *Box) Clip(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i >= len(b.Low) {
			out[i] = v
			continue
		}
		out[i] = math.Max(b.Low[i], math.Min(b.High[i], v))
	}
	return out
}

func (b *Box) String() string {
	return fmt.Sprintf("Box(%d)", len(b.Low))
}

// Dict is a set of named boxes.
type Dict struct {
	spaces map[string]*Box
}

func NewDict(spaces map[string]*Box) *Dict {
	m := make(map[string]*Box, len(spaces))
	for k, v := range spaces {
		m[k] = v
	}
	return &Dict{spaces: m}
}

// Keys returns the space names in sorted order.
func (d *Dict) Keys() []string {
	keys := make([]string, 0, len(d.spaces))
	for k := range d.spaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Dict) Get(key string) (*Box, error) {
	b, ok := d.spaces[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, key)
	}
	return b, nil
}

// Seed seeds every sub-space, in key order, from consecutive seeds.
func (d *Dict) Seed(seed uint64) {
	for i, k := range d.Keys() {
		d.spaces[k].Seed(seed + uint64(i))
	}
}

func (d *Dict) Sample() map[string][]float64 {
	out := make(map[string][]float64, len(d.spaces))
	for _, k := range d.Keys() {
		out[k] = d.spaces[k].Sample()
	}
	return out
}

// Contains reports whether x has exactly the dict's keys and every value
// lies in its box.
func (d *Dict) Contains(x map[string][]float64) bool {
	if len(x) != len(d.spaces) {
		return false
	}
	for k, v := range x {
		b, ok := d.spaces[k]
		if !ok || !b.Contains(v) {
			return false
		}
	}
	return true
}
