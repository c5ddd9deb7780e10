package registry

import (
	"errors"
	"testing"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

func TestNewRejectsUnknownPrerequisite(t *testing.T) {
	t.Parallel()

	_, err := New([]Spec{
		{Name: "a", Prerequisites: []contractx.AgentName{"missing"}},
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation", err)
	}
}

func TestNewRejectsCycle(t *testing.T) {
	t.Parallel()

	_, err := New([]Spec{
		{Name: "a", Prerequisites: []contractx.AgentName{"b"}},
		{Name: "b", Prerequisites: []contractx.AgentName{"a"}},
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation for cycle", err)
	}
}

func TestNewRejectsDeferredPrerequisite(t *testing.T) {
	t.Parallel()

	_, err := New([]Spec{
		{Name: "a", Prerequisites: []contractx.AgentName{"b"}},
		{Name: "b", Deferred: true},
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation for deferred prerequisite", err)
	}
}

func TestResolveClosureExpandsPrerequisites(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t)

	batches, err := r.ResolveClosure([]contractx.AgentName{contractx.AgentSuggestions})
	if err != nil {
		t.Fatalf("ResolveClosure() error = %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d: %v", len(batches), batches)
	}

	first := map[contractx.AgentName]bool{}
	for _, name := range batches[0] {
		first[name] = true
	}
	for _, want := range []contractx.AgentName{contractx.AgentIntent, contractx.AgentEmotion, contractx.AgentKnowledge} {
		if !first[want] {
			t.Fatalf("first batch %v missing prerequisite %s", batches[0], want)
		}
	}
	if len(batches[1]) != 1 || batches[1][0] != contractx.AgentSuggestions {
		t.Fatalf("second batch = %v, want [suggestions]", batches[1])
	}
}

func TestResolveClosureIndependentAgentsShareOneBatch(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t)

	batches, err := r.ResolveClosure([]contractx.AgentName{
		contractx.AgentIntent,
		contractx.AgentEmotion,
	})
	if err != nil {
		t.Fatalf("ResolveClosure() error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d: %v", len(batches), batches)
	}
	if len(batches[0]) != 2 {
		t.Fatalf("expected both agents in one batch, got %v", batches[0])
	}
}

func TestResolveClosureRejectsDeferredAgents(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t)

	for _, name := range []contractx.AgentName{contractx.AgentQA, contractx.AgentSummary} {
		_, err := r.ResolveClosure([]contractx.AgentName{name})
		if !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("ResolveClosure(%s) error = %v, want ErrValidation", name, err)
		}
	}
}

func TestResolveClosureRejectsUnknownAgent(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t)

	_, err := r.ResolveClosure([]contractx.AgentName{"telepathy"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ResolveClosure() error = %v, want ErrValidation", err)
	}
}

func TestResolveClosureRejectsEmptyRequest(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t)

	_, err := r.ResolveClosure(nil)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ResolveClosure(nil) error = %v, want ErrValidation", err)
	}
}

func TestDeferredAgents(t *testing.T) {
	t.Parallel()

	r := mustRegistry(t)

	deferred := r.DeferredAgents()
	if len(deferred) != 2 {
		t.Fatalf("DeferredAgents() = %v, want qa and summary", deferred)
	}
	if deferred[0] != contractx.AgentQA || deferred[1] != contractx.AgentSummary {
		t.Fatalf("DeferredAgents() = %v, want [qa summary]", deferred)
	}
}

func mustRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := New(DefaultSpecs())
	if err != nil {
		t.Fatalf("New(DefaultSpecs()) error = %v", err)
	}
	return r
}
