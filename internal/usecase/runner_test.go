package usecase

import (
	"context"
	"strings"
	"testing"

	"HappyPlaceLocal/internal/domain"
)

func TestDrainProcessesBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.llm.object = map[string]any{"primary_category": "Cafe", "confidence": 0.8}
	for i := 0; i < 5; i++ {
		f.create(t, domain.IngestItem{TargetType: domain.TargetLocalPlace})
	}

	runner := NewRunner(f.pipeline, f.store, 3, 2, nil)
	report, err := runner.Drain(ctx, domain.StepClassify)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Processed != 3 || report.Outcomes[domain.OutcomeAdvanced] != 3 {
		t.Fatalf("unexpected report %+v", report)
	}

	left, _ := f.store.ListByStage(ctx, domain.StageNew, 0)
	if len(left) != 2 {
		t.Fatalf("expected 2 items left at new, got %d", len(left))
	}
}

func TestTickCarriesPlaceToPublished(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.llm.object = map[string]any{"primary_category": "Cafe", "confidence": 0.9, "tags": []any{"coffee"}}
	f.llm.text = strings.Repeat("Lovely spot for an espresso. ", 8)
	f.places.details = domain.PlaceDetails{
		PlaceID:          "abc",
		Name:             "Blue Door Coffee",
		FormattedAddress: "12 Main St",
		Website:          "https://bluedoor.example",
		Rating:           4.7,
		UserRatingsTotal: 120,
		Lat:              40.7,
		Lng:              -74.0,
		Types:            []string{"cafe", "establishment"},
		OpeningHours:     map[string]any{"open_now": true},
	}
	id := f.create(t, domain.IngestItem{
		TargetType: domain.TargetLocalPlace,
		Payload:    domain.Payload{"name": "Blue Door", "place_id": "abc"},
	})

	runner := NewRunner(f.pipeline, f.store, 10, 4, nil)
	report, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if report.Processed != 5 {
		t.Fatalf("expected five steps in one tick, got %+v", report)
	}

	item := f.load(t, id)
	if item.Stage != domain.StagePublished {
		t.Fatalf("expected published, got %s (error %q)", item.Stage, errorOf(item))
	}
	if score, _ := item.Score(); score != 100 {
		t.Fatalf("expected clamped 100, got %d", score)
	}
	if f.places.callCount() != 1 {
		t.Fatalf("expected one details lookup, got %d", f.places.callCount())
	}
}

func TestDrainSkipsLockedItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.create(t, domain.IngestItem{TargetType: domain.TargetEvent})
	locked := NewPipeline(PipelineDeps{Store: f.store, Registry: f.registry, Locker: lockedLocker{}})

	report, err := NewRunner(locked, f.store, 0, 0, nil).Drain(context.Background(), domain.StepClassify)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if report.Skipped != 1 || report.Processed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
