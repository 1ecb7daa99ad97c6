package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/hooks"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

// DefaultStageTimeout bounds a single handler run when none is configured.
const DefaultStageTimeout = 60 * time.Second

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Store        ports.IngestStore
	Registry     *stage.Registry
	Locker       ports.Locker
	Hooks        *hooks.Hooks
	Logger       *slog.Logger
	StageTimeout time.Duration
}

// Pipeline runs one step for one item at a time: it takes the item lock,
// checks the transition, invokes the handler and settles the outcome.
type Pipeline struct {
	store        ports.IngestStore
	registry     *stage.Registry
	locker       ports.Locker
	hooks        *hooks.Hooks
	logger       *slog.Logger
	stageTimeout time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	timeout := deps.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		store:        deps.Store,
		registry:     deps.Registry,
		locker:       deps.Locker,
		hooks:        deps.Hooks,
		logger:       logger,
		stageTimeout: timeout,
	}
}

// Run executes step for item id. Handler failures are folded into the
// returned Outcome; the error is reserved for lock, load and stage-write
// problems that leave the item untouched.
func (p *Pipeline) Run(ctx context.Context, id int64, step domain.Step) (domain.Outcome, error) {
	handler, err := p.registry.Resolve(step)
	if err != nil {
		return domain.Outcome{}, err
	}

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx, id)
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("lock item %d: %w", id, err)
		}
		defer release()
	}

	item, err := p.store.Load(ctx, id)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("load item %d: %w", id, err)
	}
	if err := domain.CheckTransition(item.Stage, step.Output()); err != nil {
		return domain.Outcome{}, fmt.Errorf("%s item %d: %w", step, id, err)
	}

	started := time.Now()
	outcome, runErr := p.invoke(ctx, handler, item)
	if runErr != nil {
		outcome = fallback(step, item.Stage, runErr)
	}

	if err := p.settle(ctx, item, outcome); err != nil {
		return outcome, err
	}

	p.logger.Info("stage settled",
		"item_id", id,
		"step", step,
		"from", item.Stage,
		"to", outcome.Stage,
		"outcome", outcome.Kind,
		"message", outcome.Message,
		"duration", time.Since(started))
	return outcome, nil
}

// Advance runs whichever step follows the item's current stage.
func (p *Pipeline) Advance(ctx context.Context, id int64) (domain.Outcome, error) {
	item, err := p.store.Load(ctx, id)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("load item %d: %w", id, err)
	}
	step, ok := domain.StepFor(item.Stage)
	if !ok {
		return domain.Outcome{Kind: domain.OutcomeAdvanced, Stage: item.Stage}, fmt.Errorf("item %d at %s: %w", id, item.Stage, ErrNothingToRun)
	}
	return p.Run(ctx, id, step)
}

// ErrNothingToRun is returned by Advance for items at a terminal stage.
var ErrNothingToRun = errors.New("no step left to run")

func (p *Pipeline) invoke(ctx context.Context, h stage.Handler, item domain.IngestItem) (out domain.Outcome, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", h.Step(), r)
		}
	}()
	return h.Run(ctx, item)
}

// fallback converts an unexpected handler failure into the step's policy:
// enrich and score still advance, publish lands on error_publish, classify and
// rewrite stay put so they can be retried.
func fallback(step domain.Step, current domain.Stage, err error) domain.Outcome {
	msg := err.Error()
	switch step {
	case domain.StepEnrich, domain.StepScore:
		return domain.Degraded(step.Output(), msg)
	case domain.StepPublish:
		return domain.Failed(domain.StageErrorPublish, msg)
	default:
		return domain.Failed(current, msg)
	}
}

func (p *Pipeline) settle(ctx context.Context, item domain.IngestItem, out domain.Outcome) error {
	if out.Message != "" {
		if err := p.store.SetMeta(ctx, item.ID, domain.MetaError, out.Message); err != nil {
			return fmt.Errorf("record error for item %d: %w", item.ID, err)
		}
	}

	if out.Stage != "" && out.Stage != item.Stage {
		if err := p.store.TransitionStage(ctx, item.ID, item.Stage, out.Stage); err != nil {
			return fmt.Errorf("move item %d to %s: %w", item.ID, out.Stage, err)
		}
	}

	if name := eventFor(out); name != "" {
		p.hooks.Emit(ctx, hooks.Event{
			Name:    name,
			ItemID:  item.ID,
			Stage:   out.Stage,
			Message: out.Message,
			PostID:  out.PostID,
		})
	}
	return nil
}

func eventFor(out domain.Outcome) string {
	if out.Kind == domain.OutcomeFailed && out.Stage != domain.StageErrorPublish {
		return ""
	}
	switch out.Stage {
	case domain.StageClassified:
		return hooks.EventClassified
	case domain.StageEnriched:
		return hooks.EventEnriched
	case domain.StageScored:
		return hooks.EventScored
	case domain.StageRewritten:
		return hooks.EventRewritten
	case domain.StagePublished:
		return hooks.EventPublished
	case domain.StageReadyForReview:
		return hooks.EventReview
	case domain.StageErrorPublish:
		return hooks.EventPublishFailed
	}
	return ""
}
