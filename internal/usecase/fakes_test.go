package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"HappyPlaceLocal/internal/apikey"
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/hooks"
	"HappyPlaceLocal/internal/infrastructure/storage/memstore"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

type fakeLLM struct {
	mu      sync.Mutex
	object  map[string]any
	text    string
	err     error
	calls   int
	schemas []string
}

func (f *fakeLLM) JSONCall(_ context.Context, _ []domain.Message, schema ports.Schema) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.schemas = append(f.schemas, schema.Name)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]any, len(f.object))
	for k, v := range f.object {
		out[k] = v
	}
	return out, nil
}

func (f *fakeLLM) TextCall(context.Context, []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

type fakePlaces struct {
	mu      sync.Mutex
	details domain.PlaceDetails
	err     error
	calls   int
	keys    []string
}

func (f *fakePlaces) Details(_ context.Context, apiKey, _ string) (domain.PlaceDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, apiKey)
	return f.details, f.err
}

func (f *fakePlaces) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type lockedLocker struct{}

func (lockedLocker) Acquire(context.Context, int64) (func(), error) {
	return nil, domain.ErrLocked
}

type fixture struct {
	store    *memstore.Store
	llm      *fakeLLM
	places   *fakePlaces
	hooks    *hooks.Hooks
	registry *stage.Registry
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    memstore.New(),
		llm:      &fakeLLM{},
		places:   &fakePlaces{},
		hooks:    hooks.New(nil),
		registry: stage.NewRegistry(),
	}
	keys := apikey.NewResolver(apikey.ConstProvider{Value: "AIza-test"})

	f.registry.Register(NewClassifier(f.llm, f.store))
	f.registry.Register(NewEnricher(f.store, f.places, keys, EnricherOptions{}))
	f.registry.Register(NewScorer(f.store, f.hooks))
	f.registry.Register(NewRewriter(f.llm, f.store))
	f.registry.Register(NewPublisher(f.store, f.store, f.hooks, DefaultPublishThreshold, nil))

	f.pipeline = NewPipeline(PipelineDeps{
		Store:        f.store,
		Registry:     f.registry,
		Hooks:        f.hooks,
		StageTimeout: 5 * time.Second,
	})
	return f
}

func (f *fixture) create(t *testing.T, item domain.IngestItem) int64 {
	t.Helper()
	id, err := f.store.Create(context.Background(), item)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func (f *fixture) load(t *testing.T, id int64) domain.IngestItem {
	t.Helper()
	item, err := f.store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return item
}

func (f *fixture) run(t *testing.T, id int64, step domain.Step) domain.Outcome {
	t.Helper()
	out, err := f.pipeline.Run(context.Background(), id, step)
	if err != nil {
		t.Fatalf("Run %s: %v", step, err)
	}
	return out
}
