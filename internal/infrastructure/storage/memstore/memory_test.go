package memstore

import (
	"context"
	"errors"
	"testing"

	"HappyPlaceLocal/internal/domain"
)

func TestTransitionStageIsConditional(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	id, err := s.Create(ctx, domain.IngestItem{TargetType: domain.TargetLocalPlace, Payload: domain.Payload{"name": "x"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.TransitionStage(ctx, id, domain.StageNew, domain.StageClassified); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	err = s.TransitionStage(ctx, id, domain.StageNew, domain.StageClassified)
	if !errors.Is(err, domain.ErrStageConflict) {
		t.Fatalf("expected ErrStageConflict on stale from, got %v", err)
	}
	err = s.TransitionStage(ctx, id, domain.StageClassified, domain.StageNew)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestLoadReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	id, _ := s.Create(ctx, domain.IngestItem{Payload: domain.Payload{"rating": 4}})

	item, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if item.Stage != domain.StageNew {
		t.Fatalf("expected default stage new, got %s", item.Stage)
	}
	if _, ok := item.Payload["rating"].(float64); !ok {
		t.Fatalf("expected JSON-normalized float, got %T", item.Payload["rating"])
	}

	item.Payload["rating"] = 1.0
	again, _ := s.Load(ctx, id)
	if again.Payload["rating"] != 4.0 {
		t.Fatalf("mutation leaked into store: %v", again.Payload["rating"])
	}

	if _, err := s.Load(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx, domain.IngestItem{}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = s.TransitionStage(ctx, 2, domain.StageNew, domain.StageClassified)

	ids, _ := s.ListByStage(ctx, domain.StageNew, 10)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("unexpected ids %v", ids)
	}
	ids, _ = s.ListByStage(ctx, domain.StageNew, 1)
	if len(ids) != 1 {
		t.Fatalf("limit not applied: %v", ids)
	}
}

func TestUpdatePostMergesMeta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	id, _ := s.CreatePost(ctx, domain.Post{Title: "A", Body: "old", Meta: map[string]string{"phone": "1", "website": "w"}})

	if err := s.UpdatePost(ctx, id, domain.PostUpdate{Meta: map[string]string{"phone": "2"}}); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	post, _ := s.GetPost(ctx, id)
	if post.Body != "old" || post.Meta["phone"] != "2" || post.Meta["website"] != "w" {
		t.Fatalf("unexpected post after merge: %+v", post)
	}

	if err := s.AppendEnhancement(ctx, domain.Enhancement{PostID: 42}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown post, got %v", err)
	}
}
