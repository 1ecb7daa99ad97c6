package hooks

import (
	"context"
	"errors"
	"testing"

	"HappyPlaceLocal/internal/domain"
)

func TestFiltersRunInOrder(t *testing.T) {
	t.Parallel()

	h := New(nil)
	h.OnScore(func(score int, id int64, payload domain.Payload) int { return score + 5 })
	h.OnScore(func(score int, id int64, payload domain.Payload) int { return score * 2 })

	if got := h.ScoreAdjustment(10, 1, nil); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}

	h.OnAutoPublish(func(decision bool, score int, id int64, payload domain.Payload) bool {
		return score >= 70
	})
	if !h.AutoPublishDecision(false, 75, 1, nil) {
		t.Fatal("filter should have overridden the default decision")
	}
}

func TestNilHooksPassThrough(t *testing.T) {
	t.Parallel()

	var h *Hooks
	if h.ScoreAdjustment(42, 1, nil) != 42 {
		t.Fatal("nil hooks must not change the score")
	}
	if !h.AutoPublishDecision(true, 90, 1, nil) {
		t.Fatal("nil hooks must not change the decision")
	}
	h.Emit(context.Background(), Event{Name: EventScored})
}

func TestEmitContinuesAfterListenerError(t *testing.T) {
	t.Parallel()

	h := New(nil)
	var got []int64
	h.Subscribe(EventEnriched, func(ctx context.Context, ev Event) error {
		return errors.New("boom")
	})
	h.Subscribe(EventEnriched, func(ctx context.Context, ev Event) error {
		got = append(got, ev.ItemID)
		return nil
	})
	h.Subscribe(EventScored, func(ctx context.Context, ev Event) error {
		t.Fatal("unrelated listener must not fire")
		return nil
	})

	h.Emit(context.Background(), Event{Name: EventEnriched, ItemID: 7})
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected second listener to receive item 7, got %v", got)
	}
}
