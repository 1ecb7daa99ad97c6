package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

const (
	defaultBatchSize = 25
	defaultWorkers   = 4
)

// DrainReport summarizes one batch run.
type DrainReport struct {
	Step      domain.Step
	Processed int
	Skipped   int
	Outcomes  map[domain.OutcomeKind]int
}

func (r DrainReport) add(o DrainReport) DrainReport {
	r.Processed += o.Processed
	r.Skipped += o.Skipped
	for k, n := range o.Outcomes {
		r.Outcomes[k] += n
	}
	return r
}

// Runner drains items waiting at a stage through the pipeline.
type Runner struct {
	pipeline  *Pipeline
	store     ports.IngestStore
	batchSize int
	workers   int
	logger    *slog.Logger
}

// NewRunner builds a batch runner. Non-positive sizes fall back to defaults.
func NewRunner(pipeline *Pipeline, store ports.IngestStore, batchSize, workers int, logger *slog.Logger) *Runner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{pipeline: pipeline, store: store, batchSize: batchSize, workers: workers, logger: logger}
}

// Drain runs step on up to one batch of items waiting at its input stage.
// Items locked by another run or moved underneath us are skipped.
func (r *Runner) Drain(ctx context.Context, step domain.Step) (DrainReport, error) {
	report := DrainReport{Step: step, Outcomes: map[domain.OutcomeKind]int{}}

	ids, err := r.store.ListByStage(ctx, step.Input(), r.batchSize)
	if err != nil {
		return report, fmt.Errorf("list %s: %w", step.Input(), err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := r.pipeline.Run(gctx, id, step)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Processed++
				report.Outcomes[outcome.Kind]++
			case skippable(err):
				report.Skipped++
				r.logger.Debug("item skipped", "item_id", id, "step", step, "reason", err)
			default:
				report.Skipped++
				r.logger.Error("item run failed", "item_id", id, "step", step, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// Tick drains every step once, in pipeline order.
func (r *Runner) Tick(ctx context.Context) (DrainReport, error) {
	total := DrainReport{Outcomes: map[domain.OutcomeKind]int{}}
	for _, step := range domain.Steps {
		report, err := r.Drain(ctx, step)
		total = total.add(report)
		if err != nil {
			return total, fmt.Errorf("drain %s: %w", step, err)
		}
	}
	if total.Processed > 0 || total.Skipped > 0 {
		r.logger.Info("tick finished", "processed", total.Processed, "skipped", total.Skipped, "outcomes", total.Outcomes)
	}
	return total, nil
}

func skippable(err error) bool {
	return errors.Is(err, domain.ErrLocked) ||
		errors.Is(err, domain.ErrStageConflict) ||
		errors.Is(err, domain.ErrInvalidTransition)
}
