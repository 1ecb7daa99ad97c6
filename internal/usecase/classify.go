package usecase

import (
	"context"
	"fmt"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

// Classifier asks the model for a structured classification of the payload.
type Classifier struct {
	llm   ports.LLM
	store ports.IngestStore
}

var _ stage.Handler = (*Classifier)(nil)

// NewClassifier builds the classify step.
func NewClassifier(llm ports.LLM, store ports.IngestStore) *Classifier {
	return &Classifier{llm: llm, store: store}
}

// Step implements stage.Handler.
func (c *Classifier) Step() domain.Step { return domain.StepClassify }

// Run picks the schema by target type and stores the validated object.
func (c *Classifier) Run(ctx context.Context, item domain.IngestItem) (domain.Outcome, error) {
	messages, err := payloadMessages(classifyPrompt(item.TargetType), item.Payload)
	if err != nil {
		return domain.Outcome{}, err
	}

	result, err := c.llm.JSONCall(ctx, messages, schemaFor(item.TargetType))
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("classify: %w", err)
	}

	if err := c.store.SetMeta(ctx, item.ID, domain.MetaClassify, result); err != nil {
		return domain.Outcome{}, fmt.Errorf("store classification: %w", err)
	}
	return domain.Advanced(domain.StageClassified), nil
}
