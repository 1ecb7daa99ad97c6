package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/infrastructure/storage/memstore"
	"HappyPlaceLocal/internal/usecase"
)

type fakePipeline struct {
	runs    []domain.Step
	outcome domain.Outcome
	err     error
}

func (f *fakePipeline) Run(_ context.Context, _ int64, step domain.Step) (domain.Outcome, error) {
	f.runs = append(f.runs, step)
	return f.outcome, f.err
}

func (f *fakePipeline) Advance(_ context.Context, _ int64) (domain.Outcome, error) {
	return f.outcome, f.err
}

type fakeDrainer struct{ step domain.Step }

func (f *fakeDrainer) Drain(_ context.Context, step domain.Step) (usecase.DrainReport, error) {
	f.step = step
	return usecase.DrainReport{
		Step:      step,
		Processed: 2,
		Skipped:   1,
		Outcomes:  map[domain.OutcomeKind]int{domain.OutcomeAdvanced: 2},
	}, nil
}

func serve(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	NewServer(h, nil).ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewHandler(memstore.New(), &fakePipeline{}, nil), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetItem(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	h := NewHandler(store, &fakePipeline{}, nil)

	rec := serve(t, h, http.MethodPost, "/items", `{"target_type":"local_place","payload":{"name":"Blue Door Cafe","place_id":"abc"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	id := int64(decode(t, rec)["id"].(float64))

	rec = serve(t, h, http.MethodGet, fmt.Sprintf("/items/%d", id), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decode(t, rec)
	if got["stage"] != "new" || got["target_type"] != "local_place" {
		t.Fatalf("unexpected item %v", got)
	}
	if got["payload"].(map[string]any)["name"] != "Blue Door Cafe" {
		t.Fatalf("unexpected payload %v", got["payload"])
	}

	if rec := serve(t, h, http.MethodPost, "/items", `{"payload":{}}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without target_type, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/items/99", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/items/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestRunStep(t *testing.T) {
	t.Parallel()

	pipe := &fakePipeline{outcome: domain.Outcome{Kind: domain.OutcomeAdvanced, Stage: domain.StagePublished, PostID: 5}}
	h := NewHandler(memstore.New(), pipe, nil)

	rec := serve(t, h, http.MethodPost, "/items/3/stages/publish", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["outcome"] != "advanced" || got["stage"] != "published" || got["post_id"] != 5.0 {
		t.Fatalf("unexpected outcome %v", got)
	}
	if len(pipe.runs) != 1 || pipe.runs[0] != domain.StepPublish {
		t.Fatalf("unexpected runs %v", pipe.runs)
	}

	if rec := serve(t, h, http.MethodPost, "/items/3/stages/translate", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown step, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("lock item 1: %w", domain.ErrLocked), http.StatusLocked},
		{fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("score: %w", domain.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("item 1: %w", usecase.ErrNothingToRun), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewHandler(memstore.New(), &fakePipeline{err: tc.err}, nil)
		if rec := serve(t, h, http.MethodPost, "/items/1/advance", ""); rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestDrain(t *testing.T) {
	t.Parallel()

	if rec := serve(t, NewHandler(memstore.New(), &fakePipeline{}, nil), http.MethodPost, "/drain/score", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without runner, got %d", rec.Code)
	}

	drainer := &fakeDrainer{}
	rec := serve(t, NewHandler(memstore.New(), &fakePipeline{}, drainer), http.MethodPost, "/drain/score", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decode(t, rec)
	if drainer.step != domain.StepScore || got["processed"] != 2.0 || got["skipped"] != 1.0 {
		t.Fatalf("unexpected drain response %v", got)
	}
	if got["outcomes"].(map[string]any)["advanced"] != 2.0 {
		t.Fatalf("unexpected outcomes %v", got["outcomes"])
	}
}
