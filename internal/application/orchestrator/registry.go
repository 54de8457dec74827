package orchestrator

import (
	"fmt"

	"github.com/aescanero/assetforge/pkg/domain"
)

// Registry holds step definitions and their dependency edges.
// It is not safe for concurrent registration; the Pipeline serializes access.
type Registry struct {
	defs  map[domain.StepName]domain.StepDefinition
	order []domain.StepName
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[domain.StepName]domain.StepDefinition),
	}
}

// Register adds a step definition. Dependencies may name steps that are
// registered later; they are checked by Validate.
func (r *Registry) Register(def domain.StepDefinition) error {
	name, err := domain.ParseStepName(string(def.Name))
	if err != nil {
		return &InvalidStepError{Reason: err.Error()}
	}
	def.Name = name

	if _, exists := r.defs[name]; exists {
		return &DuplicateStepError{Step: name}
	}
	if def.MaxRetries < 0 {
		return &InvalidStepError{Step: name, Reason: fmt.Sprintf("max retries must be non-negative, got %d", def.MaxRetries)}
	}
	if def.Action == nil {
		return &InvalidStepError{Step: name, Reason: "action is required"}
	}

	var deps []domain.StepName
	seen := make(map[domain.StepName]bool, len(def.Dependencies))
	for _, raw := range def.Dependencies {
		dep, err := domain.ParseStepName(string(raw))
		if err != nil {
			return &InvalidStepError{Step: name, Reason: "dependency name is empty"}
		}
		if seen[dep] {
			return &InvalidStepError{Step: name, Reason: fmt.Sprintf("dependency %q listed twice", dep)}
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	def.Dependencies = deps

	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

// Len returns the number of registered steps
func (r *Registry) Len() int {
	return len(r.order)
}

// Order returns step names in declaration order
func (r *Registry) Order() []domain.StepName {
	out := make([]domain.StepName, len(r.order))
	copy(out, r.order)
	return out
}

// Definition returns the definition registered under name
func (r *Registry) Definition(name domain.StepName) (domain.StepDefinition, bool) {
	def, ok := r.defs[name]
	if !ok {
		return domain.StepDefinition{}, false
	}
	return def.Clone(), true
}

// Dependents returns the steps that directly depend on name, in declaration order
func (r *Registry) Dependents(name domain.StepName) []domain.StepName {
	var out []domain.StepName
	for _, candidate := range r.order {
		for _, dep := range r.defs[candidate].Dependencies {
			if dep == name {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// Validate checks that every dependency is registered and that the graph is
// acyclic. The first problem found in declaration order is returned.
func (r *Registry) Validate() error {
	for _, name := range r.order {
		for _, dep := range r.defs[name].Dependencies {
			if _, ok := r.defs[dep]; !ok {
				return &UnknownDependencyError{Step: name, Dependency: dep}
			}
		}
	}

	const (
		unvisited = iota
		inProgress
		done
	)

	color := make(map[domain.StepName]int, len(r.order))
	var stack []domain.StepName

	var visit func(name domain.StepName) error
	visit = func(name domain.StepName) error {
		color[name] = inProgress
		stack = append(stack, name)
		for _, dep := range r.defs[name].Dependencies {
			switch color[dep] {
			case inProgress:
				return &CyclicDependencyError{Step: dep, Cycle: cycleFrom(stack, dep)}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = done
		return nil
	}

	for _, name := range r.order {
		if color[name] != unvisited {
			continue
		}
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// cycleFrom extracts the cycle that closes at target from the DFS stack,
// as a "depends on" chain that starts and ends with target.
func cycleFrom(stack []domain.StepName, target domain.StepName) []domain.StepName {
	start := 0
	for i, name := range stack {
		if name == target {
			start = i
			break
		}
	}
	out := make([]domain.StepName, 0, len(stack)-start+1)
	out = append(out, stack[start:]...)
	return append(out, target)
}

// TopologicalOrder returns an execution order that respects dependencies,
// breaking ties by declaration order. The graph must be valid.
func (r *Registry) TopologicalOrder() ([]domain.StepName, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	remaining := make(map[domain.StepName]int, len(r.order))
	for _, name := range r.order {
		remaining[name] = len(r.defs[name].Dependencies)
	}

	placed := make(map[domain.StepName]bool, len(r.order))
	out := make([]domain.StepName, 0, len(r.order))
	for len(out) < len(r.order) {
		progressed := false
		for _, name := range r.order {
			if placed[name] || remaining[name] > 0 {
				continue
			}
			placed[name] = true
			out = append(out, name)
			for _, dependent := range r.Dependents(name) {
				remaining[dependent]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("%w: no schedulable step left", ErrConfiguration)
		}
	}
	return out, nil
}
