// Package hooks holds the extension seams of the pipeline: value filters that
// external code may install, and a notification bus for post-stage events.
package hooks

import (
	"context"
	"log/slog"
	"sync"

	"HappyPlaceLocal/internal/domain"
)

// Event names emitted after stage transitions.
const (
	EventClassified    = "item.classified"
	EventEnriched      = "item.enriched"
	EventScored        = "item.scored"
	EventRewritten     = "item.rewritten"
	EventPublished     = "item.published"
	EventReview        = "item.review"
	EventPublishFailed = "item.publish_failed"
)

// AutoPublishFilter may override the default auto-publish decision.
type AutoPublishFilter func(decision bool, score int, id int64, payload domain.Payload) bool

// ScoreFilter may adjust a computed score before it is persisted.
type ScoreFilter func(score int, id int64, payload domain.Payload) int

// Event is delivered to subscribers after a stage settles.
type Event struct {
	Name    string
	ItemID  int64
	Stage   domain.Stage
	Message string
	PostID  int64
}

// Listener receives events. Errors are logged and never block the pipeline.
type Listener func(ctx context.Context, ev Event) error

// Hooks is safe for concurrent use.
type Hooks struct {
	mu          sync.RWMutex
	autoPublish []AutoPublishFilter
	score       []ScoreFilter
	listeners   map[string][]Listener
	logger      *slog.Logger
}

// New builds an empty hook set.
func New(logger *slog.Logger) *Hooks {
	return &Hooks{listeners: map[string][]Listener{}, logger: logger}
}

// OnAutoPublish appends a filter; filters run in registration order.
func (h *Hooks) OnAutoPublish(f AutoPublishFilter) {
	h.mu.Lock()
	h.autoPublish = append(h.autoPublish, f)
	h.mu.Unlock()
}

// OnScore appends a score filter.
func (h *Hooks) OnScore(f ScoreFilter) {
	h.mu.Lock()
	h.score = append(h.score, f)
	h.mu.Unlock()
}

// Subscribe registers a listener for one event name.
func (h *Hooks) Subscribe(name string, l Listener) {
	h.mu.Lock()
	h.listeners[name] = append(h.listeners[name], l)
	h.mu.Unlock()
}

// AutoPublishDecision threads decision through every installed filter.
func (h *Hooks) AutoPublishDecision(decision bool, score int, id int64, payload domain.Payload) bool {
	if h == nil {
		return decision
	}
	h.mu.RLock()
	filters := append([]AutoPublishFilter(nil), h.autoPublish...)
	h.mu.RUnlock()

	for _, f := range filters {
		decision = f(decision, score, id, payload)
	}
	return decision
}

// ScoreAdjustment threads score through every installed filter.
func (h *Hooks) ScoreAdjustment(score int, id int64, payload domain.Payload) int {
	if h == nil {
		return score
	}
	h.mu.RLock()
	filters := append([]ScoreFilter(nil), h.score...)
	h.mu.RUnlock()

	for _, f := range filters {
		score = f(score, id, payload)
	}
	return score
}

// Emit delivers ev synchronously to its listeners.
func (h *Hooks) Emit(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	listeners := append([]Listener(nil), h.listeners[ev.Name]...)
	h.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, ev); err != nil && h.logger != nil {
			h.logger.Warn("hook listener failed", "event", ev.Name, "item_id", ev.ItemID, "error", err)
		}
	}
}
