package domain

import "fmt"

// Stage enumerates pipeline milestones.
type Stage string

const (
	StageNew            Stage = "new"
	StageClassified     Stage = "classified"
	StageEnriched       Stage = "enriched"
	StageReadyForReview Stage = "ready_for_review"
	StageScored         Stage = "scored"
	StageRewritten      Stage = "rewritten"
	StagePublished      Stage = "published"
	StageErrorPublish   Stage = "error_publish"
)

// Stages lists every legal stage value in canonical order.
var Stages = []Stage{
	StageNew,
	StageClassified,
	StageEnriched,
	StageScored,
	StageRewritten,
	StagePublished,
	StageReadyForReview,
	StageErrorPublish,
}

// transitions maps a current stage to the stages it may move to. Self
// transitions let a stage be re-run without moving the item backwards.
var transitions = map[Stage][]Stage{
	StageNew:            {StageClassified},
	StageClassified:     {StageClassified, StageEnriched, StageReadyForReview},
	StageEnriched:       {StageEnriched, StageScored, StageReadyForReview},
	StageScored:         {StageScored, StageRewritten},
	StageRewritten:      {StageRewritten, StagePublished, StageReadyForReview, StageErrorPublish},
	StagePublished:      {},
	StageErrorPublish:   {StagePublished, StageReadyForReview, StageErrorPublish},
	StageReadyForReview: {StageReadyForReview},
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no forward work remains for the item.
func (s Stage) Terminal() bool {
	switch s {
	case StagePublished, StageReadyForReview, StageErrorPublish:
		return true
	}
	return false
}

// CanTransition reports whether an item may move from one stage to another.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when the move is not allowed.
func CheckTransition(from, to Stage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Step names a pipeline stage handler.
type Step string

const (
	StepClassify Step = "classify"
	StepEnrich   Step = "enrich"
	StepScore    Step = "score"
	StepRewrite  Step = "rewrite"
	StepPublish  Step = "publish"
)

// Steps lists handlers in pipeline order.
var Steps = []Step{StepClassify, StepEnrich, StepScore, StepRewrite, StepPublish}

// ParseStep validates a step name.
func ParseStep(s string) (Step, error) {
	for _, step := range Steps {
		if string(step) == s {
			return step, nil
		}
	}
	return "", fmt.Errorf("unknown step %q", s)
}

// Input returns the stage an item waits at before step runs.
func (s Step) Input() Stage {
	switch s {
	case StepClassify:
		return StageNew
	case StepEnrich:
		return StageClassified
	case StepScore:
		return StageEnriched
	case StepRewrite:
		return StageScored
	case StepPublish:
		return StageRewritten
	}
	return ""
}

// Output returns the stage a successful run of step moves the item to.
func (s Step) Output() Stage {
	switch s {
	case StepClassify:
		return StageClassified
	case StepEnrich:
		return StageEnriched
	case StepScore:
		return StageScored
	case StepRewrite:
		return StageRewritten
	case StepPublish:
		return StagePublished
	}
	return ""
}

// StepFor returns the handler that should run for an item sitting at s.
// The boolean is false when nothing is left to run.
func StepFor(s Stage) (Step, bool) {
	for _, step := range Steps {
		if step.Input() == s {
			return step, true
		}
	}
	return "", false
}
