package domain

// OutcomeKind tags how a stage run ended.
type OutcomeKind string

const (
	// OutcomeAdvanced means the stage did its work and moved the item forward.
	OutcomeAdvanced OutcomeKind = "advanced"
	// OutcomeDegraded means the item moved forward but an error was recorded.
	OutcomeDegraded OutcomeKind = "degraded"
	// OutcomeDiverted means the item was routed to human review.
	OutcomeDiverted OutcomeKind = "diverted"
	// OutcomeFailed means the stage could not complete; see Stage for where the item sits.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the tagged result every stage returns.
type Outcome struct {
	Kind    OutcomeKind
	Stage   Stage
	Message string
	PostID  int64
}

// Advanced builds a plain success outcome.
func Advanced(stage Stage) Outcome {
	return Outcome{Kind: OutcomeAdvanced, Stage: stage}
}

// Degraded builds a forward-moving outcome carrying an error message.
func Degraded(stage Stage, msg string) Outcome {
	return Outcome{Kind: OutcomeDegraded, Stage: stage, Message: msg}
}

// Diverted routes the item to review.
func Diverted(msg string) Outcome {
	return Outcome{Kind: OutcomeDiverted, Stage: StageReadyForReview, Message: msg}
}

// Failed records a failure with the stage the item ends up at.
func Failed(stage Stage, msg string) Outcome {
	return Outcome{Kind: OutcomeFailed, Stage: stage, Message: msg}
}

// OK reports whether the item moved forward.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeAdvanced || o.Kind == OutcomeDegraded
}
