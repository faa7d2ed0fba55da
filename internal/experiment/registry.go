package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/reachenv/internal/control"
	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/integrators"
)

type PolicyFactory func(e *env.Env, seed uint64) (control.Policy, error)

type Registry struct {
	policies    map[string]PolicyFactory
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		policies:    make(map[string]PolicyFactory),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["semi-euler"] = func() dynamo.Integrator { return integrators.NewSemiImplicitEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["verlet"] = func() dynamo.Integrator { return integrators.NewVerlet() }

	r.policies["zero"] = func(e *env.Env, _ uint64) (control.Policy, error) {
		return control.NewZero(e.ActionSpace().Dim()), nil
	}
	r.policies["random"] = func(e *env.Env, seed uint64) (control.Policy, error) {
		return control.NewRandom(e.ActionSpace(), seed), nil
	}
	r.policies["reacher"] = func(e *env.Env, _ uint64) (control.Policy, error) {
		return control.NewReacher(e, control.DefaultReacherOptions())
	}

	return r
}

// RegisterPolicy adds or replaces a policy factory.
func (r *Registry) RegisterPolicy(name string, fn PolicyFactory) {
	r.policies[name] = fn
}

func (r *Registry) GetPolicy(name string, e *env.Env, seed uint64) (control.Policy, error) {
	fn, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy: %s", name)
	}
	return fn(e, seed)
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListPolicies() []string {
	return sortedKeys(r.policies)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
