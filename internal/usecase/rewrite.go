package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

// ErrEmptyRewrite is returned when the model answers with blank copy.
var ErrEmptyRewrite = errors.New("model returned empty copy")

// Rewriter generates the public markdown description.
type Rewriter struct {
	llm   ports.LLM
	store ports.IngestStore
}

var _ stage.Handler = (*Rewriter)(nil)

// NewRewriter builds the rewrite step.
func NewRewriter(llm ports.LLM, store ports.IngestStore) *Rewriter {
	return &Rewriter{llm: llm, store: store}
}

// Step implements stage.Handler.
func (r *Rewriter) Step() domain.Step { return domain.StepRewrite }

// Run stores the raw model response under the rewrite meta key.
func (r *Rewriter) Run(ctx context.Context, item domain.IngestItem) (domain.Outcome, error) {
	prompt := rewritePrompt(item.TargetType, item.Classification())
	messages, err := payloadMessages(prompt, item.Payload)
	if err != nil {
		return domain.Outcome{}, err
	}

	text, err := r.llm.TextCall(ctx, messages)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("rewrite: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.Outcome{}, fmt.Errorf("rewrite: %w", ErrEmptyRewrite)
	}

	if err := r.store.SetMeta(ctx, item.ID, domain.MetaRewrite, text); err != nil {
		return domain.Outcome{}, fmt.Errorf("store rewrite: %w", err)
	}
	return domain.Advanced(domain.StageRewritten), nil
}
