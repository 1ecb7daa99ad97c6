package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/hooks"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

const (
	minScore = 0
	maxScore = 100
)

// eventDateLayouts are tried in order when reading an event start.
var eventDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Scorer computes the deterministic quality score.
type Scorer struct {
	store ports.IngestStore
	hooks *hooks.Hooks
}

var _ stage.Handler = (*Scorer)(nil)

// NewScorer builds the score step.
func NewScorer(store ports.IngestStore, h *hooks.Hooks) *Scorer {
	return &Scorer{store: store, hooks: h}
}

// Step implements stage.Handler.
func (s *Scorer) Step() domain.Step { return domain.StepScore }

// Run persists the clamped, hook-adjusted score.
func (s *Scorer) Run(ctx context.Context, item domain.IngestItem) (domain.Outcome, error) {
	var score int
	if item.TargetType.IsPlace() {
		score = PlaceScore(item.Payload, item.Classification(), item.Rewrite())
	} else {
		score = EventScore(item.Payload)
	}

	score = clamp(s.hooks.ScoreAdjustment(clamp(score), item.ID, item.Payload))

	if err := s.store.SetMeta(ctx, item.ID, domain.MetaScore, score); err != nil {
		return domain.Outcome{}, fmt.Errorf("store score: %w", err)
	}
	return domain.Advanced(domain.StageScored), nil
}

// PlaceScore scores a local place from its payload, classification and copy.
// The result is not clamped.
func PlaceScore(p, classification domain.Payload, rewrite string) int {
	score := 40

	if rating, ok := p.Float("rating"); ok && rating >= 4.0 {
		score += 20
	}
	if count, ok := firstFloat(p, "user_ratings_total", "rating_count"); ok && count >= 10 {
		score += 15
	}
	if hasAny(p, "formatted_address", "address") {
		score += 10
	}
	if hasAny(p, "phone", "formatted_phone_number", "international_phone_number") {
		score += 5
	}
	if p.Has("website") {
		score += 5
	}
	if p.Has("opening_hours") {
		score += 5
	}

	if confidence, ok := classification.Float("confidence"); ok {
		confidence = min(max(confidence, 0), 1)
		score += int(confidence * 20)
	}

	switch n := utf8.RuneCountInString(plainText(rewrite)); {
	case n > 140:
		score += 10
	case n > 80:
		score += 8
	}

	if p.Has("name") && p.Has("lat") && p.Has("lng") && classification.Has("primary_category") {
		score += 10
	}
	return score
}

// EventScore scores anything that is not a place. The result is not clamped.
func EventScore(p domain.Payload) int {
	score := 0
	if hasAny(p, "image_url", "image") {
		score += 20
	}

	start, ok := eventStart(p)
	if ok && isoWeekday(start) >= 5 {
		score += 30
	} else {
		score += 10
	}
	return score
}

func eventStart(p domain.Payload) (time.Time, bool) {
	raw := p.String("start")
	if raw == "" {
		raw = p.String("start_date")
	}
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isoWeekday numbers Monday as 1 and Sunday as 7.
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// plainText strips markup and surrounding whitespace.
func plainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func clamp(score int) int {
	return min(max(score, minScore), maxScore)
}

func hasAny(p domain.Payload, keys ...string) bool {
	for _, k := range keys {
		if p.Has(k) {
			return true
		}
	}
	return false
}

func firstFloat(p domain.Payload, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := p.Float(k); ok {
			return v, true
		}
	}
	return 0, false
}
