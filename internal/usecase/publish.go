package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/hooks"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

// DefaultPublishThreshold is the minimum score for automatic publishing.
const DefaultPublishThreshold = 80

// bodyField names the post body in enhancement change lists.
const bodyField = "content"

// Publisher turns scored, rewritten items into posts.
type Publisher struct {
	store     ports.IngestStore
	content   ports.ContentStore
	hooks     *hooks.Hooks
	threshold int
	now       func() time.Time
	logger    *slog.Logger
}

var _ stage.Handler = (*Publisher)(nil)

// NewPublisher builds the publish step; a non-positive threshold uses the default.
func NewPublisher(store ports.IngestStore, content ports.ContentStore, h *hooks.Hooks, threshold int, logger *slog.Logger) *Publisher {
	if threshold <= 0 {
		threshold = DefaultPublishThreshold
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		store:     store,
		content:   content,
		hooks:     h,
		threshold: threshold,
		now:       time.Now,
		logger:    logger,
	}
}

// Step implements stage.Handler.
func (p *Publisher) Step() domain.Step { return domain.StepPublish }

// Run applies the auto-publish gate and creates or updates the post.
func (p *Publisher) Run(ctx context.Context, item domain.IngestItem) (domain.Outcome, error) {
	if postID := item.PublishedPostID(); postID > 0 {
		p.logger.Info("post already created", "item_id", item.ID, "post_id", postID)
		out := domain.Advanced(domain.StagePublished)
		out.PostID = postID
		return out, nil
	}

	score, _ := item.Score()
	decision := p.hooks.AutoPublishDecision(score >= p.threshold, score, item.ID, item.Payload)
	if !decision {
		p.logger.Info("held for review", "item_id", item.ID, "score", score, "threshold", p.threshold)
		return domain.Diverted(""), nil
	}

	var (
		postID int64
		err    error
	)
	switch {
	case item.TargetType.IsPlace() && item.IsReimport():
		postID, err = p.updatePlace(ctx, item, score)
	case item.TargetType.IsPlace():
		postID, err = p.createPlace(ctx, item)
	default:
		postID, err = p.createEvent(ctx, item)
	}
	if err != nil {
		return domain.Failed(domain.StageErrorPublish, "Publish failed: "+err.Error()), nil
	}

	// The post exists from here on; a retry would duplicate it.
	out := domain.Advanced(domain.StagePublished)
	if err := p.store.SetMeta(ctx, item.ID, domain.MetaPublishedPost, postID); err != nil {
		p.logger.Error("store post id", "item_id", item.ID, "post_id", postID, "error", err)
		out = domain.Degraded(domain.StagePublished, fmt.Sprintf("Published post %d but could not record it: %v", postID, err))
	}
	out.PostID = postID
	return out, nil
}

func (p *Publisher) createPlace(ctx context.Context, item domain.IngestItem) (int64, error) {
	title := item.Payload.String("name")
	if title == "" {
		return 0, domain.ErrMissingName
	}
	return p.content.CreatePost(ctx, domain.Post{
		Type:   domain.PostTypePlace,
		Title:  title,
		Body:   item.Rewrite(),
		Status: domain.PostStatusPublish,
		Meta:   placeFields(item),
	})
}

// updatePlace merges non-empty fields into the existing post and records one
// enhancement entry per run.
func (p *Publisher) updatePlace(ctx context.Context, item domain.IngestItem, score int) (int64, error) {
	postID := item.SourcePostID()
	post, err := p.content.GetPost(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("load post %d: %w", postID, err)
	}

	update := domain.PostUpdate{Meta: map[string]string{}}
	var changed []string
	for key, value := range placeFields(item) {
		if post.Meta[key] == value {
			continue
		}
		update.Meta[key] = value
		changed = append(changed, key)
	}
	sort.Strings(changed)

	if body := item.Rewrite(); strings.TrimSpace(body) != "" {
		update.Body = &body
		if body != post.Body {
			changed = append(changed, bodyField)
		}
	}

	if err := p.content.UpdatePost(ctx, postID, update); err != nil {
		return 0, fmt.Errorf("update post %d: %w", postID, err)
	}

	entry := domain.Enhancement{
		ID:            ulid.Make().String(),
		PostID:        postID,
		ItemID:        item.ID,
		Score:         score,
		ChangedFields: changed,
		CreatedAt:     p.now().UTC(),
	}
	if err := p.content.AppendEnhancement(ctx, entry); err != nil {
		return 0, fmt.Errorf("log enhancement for post %d: %w", postID, err)
	}
	return postID, nil
}

func (p *Publisher) createEvent(ctx context.Context, item domain.IngestItem) (int64, error) {
	title := item.Payload.String("name")
	if title == "" {
		title = item.Payload.String("title")
	}
	if title == "" {
		return 0, domain.ErrMissingName
	}

	city := item.Payload.String("city")
	if city == "" {
		city = item.Classification().String("city_slug")
	}
	start := item.Payload.String("start")
	if start == "" {
		start = item.Payload.String("start_date")
	}
	end := item.Payload.String("end")
	if end == "" {
		end = item.Payload.String("end_date")
	}

	meta := nonEmpty(map[string]string{
		"start":       start,
		"end":         end,
		"price":       item.Payload.String("price"),
		"city":        city,
		"venue":       item.Payload.String("venue"),
		"image_url":   firstString(item.Payload, "image_url", "image"),
		"source_url":  item.Payload.String("url"),
		"source_item": strconv.FormatInt(item.ID, 10),
	})
	return p.content.CreatePost(ctx, domain.Post{
		Type:   domain.PostTypeEvent,
		Title:  title,
		Body:   item.Rewrite(),
		Status: domain.PostStatusDraft,
		Meta:   meta,
	})
}

// placeFields maps payload and classification onto post meta. Empty values are
// dropped so they never overwrite an existing field.
func placeFields(item domain.IngestItem) map[string]string {
	pl := item.Payload
	cl := item.Classification()

	priceLevel := pl.String("price_level")
	if priceLevel == "" || priceLevel == "0" {
		priceLevel = cl.String("price_tier")
	}

	fields := map[string]string{
		"lat":                  pl.String("lat"),
		"lng":                  pl.String("lng"),
		"place_id":             firstString(pl, "place_id", "reference"),
		"address":              firstString(pl, "formatted_address", "address"),
		"phone":                firstString(pl, "phone", "formatted_phone_number", "international_phone_number"),
		"website":              pl.String("website"),
		"rating":               pl.String("rating"),
		"rating_count":         firstString(pl, "user_ratings_total", "rating_count"),
		"price_level":          priceLevel,
		"image_url":            pl.String("image_url"),
		"hours":                hoursField(pl["opening_hours"]),
		"primary_category":     cl.String("primary_category"),
		"secondary_categories": strings.Join(cl.Strings("secondary_categories"), ","),
		"tags":                 strings.Join(cl.Strings("tags"), ","),
	}
	for _, flag := range amenityFlags {
		if v, ok := cl[flag].(bool); ok {
			fields[flag] = "0"
			if v {
				fields[flag] = "1"
			}
		}
	}
	return nonEmpty(fields)
}

// hoursField keeps the weekday lines when present, otherwise the raw object.
func hoursField(v any) string {
	if domain.IsEmpty(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if m, ok := v.(map[string]any); ok {
		if lines := domain.Payload(m).Strings("weekday_text"); len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func firstString(p domain.Payload, keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

func nonEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			delete(m, k)
		}
	}
	return m
}
