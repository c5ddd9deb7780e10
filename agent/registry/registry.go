package registry

import (
	"fmt"
	"sort"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

// Spec declares one agent: its prerequisite edges and whether it belongs to
// the deferred pipeline (run only after an operator response or a manual
// trigger, never on demand).
type Spec struct {
	Name          contractx.AgentName
	Prerequisites []contractx.AgentName
	Deferred      bool
}

// Registry is the static, read-only agent declaration table. Cycles and
// dangling prerequisite edges are configuration errors caught by New.
type Registry struct {
	specs map[contractx.AgentName]Spec
}

// DefaultSpecs is the production agent graph: suggestions consumes the three
// independent analyzers; qa and summary are mutually independent and deferred.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: contractx.AgentIntent},
		{Name: contractx.AgentEmotion},
		{Name: contractx.AgentKnowledge},
		{
			Name: contractx.AgentSuggestions,
			Prerequisites: []contractx.AgentName{
				contractx.AgentIntent,
				contractx.AgentEmotion,
				contractx.AgentKnowledge,
			},
		},
		{Name: contractx.AgentSummary, Deferred: true},
		{Name: contractx.AgentQA, Deferred: true},
	}
}

func New(specs []Spec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: at least one agent spec is required", contractx.ErrValidation)
	}

	byName := make(map[contractx.AgentName]Spec, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: agent spec with empty name", contractx.ErrValidation)
		}
		if _, ok := byName[spec.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate agent spec %s", contractx.ErrValidation, spec.Name)
		}
		byName[spec.Name] = spec
	}

	for _, spec := range byName {
		for _, pre := range spec.Prerequisites {
			dep, ok := byName[pre]
			if !ok {
				return nil, fmt.Errorf("%w: agent %s requires unknown agent %s", contractx.ErrValidation, spec.Name, pre)
			}
			if dep.Deferred {
				return nil, fmt.Errorf("%w: agent %s requires deferred agent %s", contractx.ErrValidation, spec.Name, pre)
			}
		}
	}

	r := &Registry{specs: byName}
	if err := r.detectCycles(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Spec(name contractx.AgentName) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// DeferredAgents returns the deferred pipeline members in stable order.
func (r *Registry) DeferredAgents() []contractx.AgentName {
	var out []contractx.AgentName
	for name, spec := range r.specs {
		if spec.Deferred {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveClosure expands the requested set with all transitive prerequisites
// and layers the closure into ordered batches: every agent in a batch has all
// of its prerequisites satisfied by a strictly earlier batch. Agents within
// one batch are mutually independent. Deferred agents may not be requested
// on demand.
func (r *Registry) ResolveClosure(requested []contractx.AgentName) ([][]contractx.AgentName, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no agents requested", contractx.ErrValidation)
	}

	closure := make(map[contractx.AgentName]struct{})
	var expand func(name contractx.AgentName) error
	expand = func(name contractx.AgentName) error {
		spec, ok := r.specs[name]
		if !ok {
			return fmt.Errorf("%w: unknown agent %s", contractx.ErrValidation, name)
		}
		if _, seen := closure[name]; seen {
			return nil
		}
		closure[name] = struct{}{}
		for _, pre := range spec.Prerequisites {
			if err := expand(pre); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range requested {
		spec, ok := r.specs[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown agent %s", contractx.ErrValidation, name)
		}
		if spec.Deferred {
			return nil, fmt.Errorf("%w: agent %s runs only through the deferred pipeline", contractx.ErrValidation, name)
		}
		if err := expand(name); err != nil {
			return nil, err
		}
	}

	// Kahn layering over the closure subgraph.
	satisfied := make(map[contractx.AgentName]struct{}, len(closure))
	remaining := make(map[contractx.AgentName]struct{}, len(closure))
	for name := range closure {
		remaining[name] = struct{}{}
	}

	var batches [][]contractx.AgentName
	for len(remaining) > 0 {
		var batch []contractx.AgentName
		for name := range remaining {
			ready := true
			for _, pre := range r.specs[name].Prerequisites {
				if _, ok := satisfied[pre]; !ok {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, name)
			}
		}
		if len(batch) == 0 {
			// Unreachable when New validated the graph; kept as a guard.
			return nil, fmt.Errorf("%w: prerequisite cycle in agent closure", contractx.ErrValidation)
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })
		for _, name := range batch {
			satisfied[name] = struct{}{}
			delete(remaining, name)
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func (r *Registry) detectCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[contractx.AgentName]int, len(r.specs))

	var visit func(name contractx.AgentName) error
	visit = func(name contractx.AgentName) error {
		switch color[name] {
		case gray:
			return fmt.Errorf("%w: prerequisite cycle through agent %s", contractx.ErrValidation, name)
		case black:
			return nil
		}
		color[name] = gray
		for _, pre := range r.specs[name].Prerequisites {
			if err := visit(pre); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for name := range r.specs {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
