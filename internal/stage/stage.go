package stage

import (
	"context"
	"fmt"

	"HappyPlaceLocal/internal/domain"
)

// Handler implements one pipeline step (classify, enrich, ...).
type Handler interface {
	Step() domain.Step
	// Run does the step's work on a loaded item. It persists payload and meta
	// changes itself and reports where the item should go next; the caller
	// owns the stage write.
	Run(ctx context.Context, item domain.IngestItem) (domain.Outcome, error)
}

// Registry keeps a mapping from step names to their implementations.
type Registry struct {
	handlers map[domain.Step]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[domain.Step]Handler{}}
}

// Register adds or replaces a handler.
func (r *Registry) Register(h Handler) {
	if r.handlers == nil {
		r.handlers = map[domain.Step]Handler{}
	}
	r.handlers[h.Step()] = h
}

// Resolve returns a handler by step or an error if it is absent.
func (r *Registry) Resolve(step domain.Step) (Handler, error) {
	if h, ok := r.handlers[step]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("step %s is not registered", step)
}
