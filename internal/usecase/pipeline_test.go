package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/hooks"
)

func TestClassifyStoresResultAndPicksSchema(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.llm.object = map[string]any{"primary_category": "Park", "confidence": 0.7}
	place := f.create(t, domain.IngestItem{TargetType: domain.TargetLocalPlace, Payload: domain.Payload{"name": "Elm Park"}})
	event := f.create(t, domain.IngestItem{TargetType: domain.TargetEvent, Payload: domain.Payload{"title": "Fair"}})

	f.run(t, place, domain.StepClassify)
	f.run(t, event, domain.StepClassify)

	item := f.load(t, place)
	if item.Stage != domain.StageClassified {
		t.Fatalf("expected classified, got %s", item.Stage)
	}
	if item.Classification().String("primary_category") != "Park" {
		t.Fatalf("classification not stored: %v", item.Meta)
	}
	if f.llm.schemas[0] != placeSchema.Name || f.llm.schemas[1] != genericSchema.Name {
		t.Fatalf("unexpected schemas %v", f.llm.schemas)
	}
}

func TestClassifyFailureLeavesStageForRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.llm.err = errors.New("schema violation: confidence")
	id := f.create(t, domain.IngestItem{TargetType: domain.TargetLocalPlace})

	out := f.run(t, id, domain.StepClassify)
	if out.Kind != domain.OutcomeFailed || out.Stage != domain.StageNew {
		t.Fatalf("expected failed at new, got %+v", out)
	}
	item := f.load(t, id)
	if item.Stage != domain.StageNew || !strings.Contains(errorOf(item), "schema violation") {
		t.Fatalf("unexpected state %s / %q", item.Stage, errorOf(item))
	}

	f.llm.err = nil
	f.llm.object = map[string]any{"primary_category": "Bar", "confidence": 0.4}
	if out := f.run(t, id, domain.StepClassify); out.Stage != domain.StageClassified {
		t.Fatalf("retry should classify, got %s", out.Stage)
	}
}

func TestRewriteStoresRawTextOrStays(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.create(t, domain.IngestItem{TargetType: domain.TargetLocalPlace, Stage: domain.StageScored})

	f.llm.text = "   "
	if out := f.run(t, id, domain.StepRewrite); out.Kind != domain.OutcomeFailed {
		t.Fatalf("blank copy should fail, got %+v", out)
	}
	if f.load(t, id).Stage != domain.StageScored {
		t.Fatalf("stage moved on failed rewrite")
	}

	f.llm.text = "**Cozy** corner spot.\n"
	f.run(t, id, domain.StepRewrite)
	item := f.load(t, id)
	if item.Stage != domain.StageRewritten || item.Rewrite() != "**Cozy** corner spot.\n" {
		t.Fatalf("unexpected rewrite state %s / %q", item.Stage, item.Rewrite())
	}
}

func TestRewritePromptMentionsCategoryAndTags(t *testing.T) {
	t.Parallel()

	prompt := rewritePrompt(domain.TargetLocalPlace, domain.Payload{"primary_category": "Bakery", "tags": []any{"sourdough", "vegan"}})
	if !strings.Contains(prompt, "Bakery") || !strings.Contains(prompt, "sourdough, vegan") || !strings.Contains(prompt, "80-150") {
		t.Fatalf("unexpected prompt %q", prompt)
	}
	if rewritePrompt(domain.TargetEvent, nil) != eventRewritePrompt {
		t.Fatalf("events use the generic prompt")
	}
}

func TestRunRespectsLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	locked := NewPipeline(PipelineDeps{Store: f.store, Registry: f.registry, Locker: lockedLocker{}})
	id := f.create(t, domain.IngestItem{TargetType: domain.TargetEvent})

	_, err := locked.Run(context.Background(), id, domain.StepClassify)
	if !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatalf("handler ran while locked")
	}
}

func TestAdvanceFollowsStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.llm.object = map[string]any{"city_slug": "springfield", "confidence": 0.9}
	f.llm.text = "Come along."

	var events []string
	for _, name := range []string{hooks.EventClassified, hooks.EventEnriched, hooks.EventScored, hooks.EventRewritten, hooks.EventReview} {
		f.hooks.Subscribe(name, func(_ context.Context, ev hooks.Event) error {
			events = append(events, ev.Name)
			return nil
		})
	}

	id := f.create(t, domain.IngestItem{TargetType: domain.TargetEvent, Payload: domain.Payload{"title": "Fair", "start": "2024-06-03"}})
	for i := 0; i < 5; i++ {
		if _, err := f.pipeline.Advance(ctx, id); err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
	}

	item := f.load(t, id)
	if item.Stage != domain.StageReadyForReview {
		t.Fatalf("monday event scores 10 and should wait for review, got %s", item.Stage)
	}
	want := []string{hooks.EventClassified, hooks.EventEnriched, hooks.EventScored, hooks.EventRewritten, hooks.EventReview}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events %v", events)
	}

	if _, err := f.pipeline.Advance(ctx, id); !errors.Is(err, ErrNothingToRun) {
		t.Fatalf("expected ErrNothingToRun at terminal stage, got %v", err)
	}
}
