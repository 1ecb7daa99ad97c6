package stage

import (
	"context"
	"testing"

	"HappyPlaceLocal/internal/domain"
)

type stubHandler struct {
	step domain.Step
}

func (s stubHandler) Step() domain.Step { return s.step }

func (s stubHandler) Run(context.Context, domain.IngestItem) (domain.Outcome, error) {
	return domain.Advanced(s.step.Output()), nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubHandler{step: domain.StepScore})

	h, err := r.Resolve(domain.StepScore)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if h.Step() != domain.StepScore {
		t.Fatalf("unexpected handler %s", h.Step())
	}

	if _, err := r.Resolve(domain.StepPublish); err == nil {
		t.Fatal("expected error for unregistered step")
	}
}

func TestZeroRegistryRegisters(t *testing.T) {
	t.Parallel()

	var r Registry
	r.Register(stubHandler{step: domain.StepEnrich})
	if _, err := r.Resolve(domain.StepEnrich); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}
