// Package memstore keeps ingest items, posts and options in memory. Values go
// through a JSON round trip on every write so callers observe the same shapes
// the SQL store returns.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

// Store is an in-memory implementation of the ingest, content and option stores.
type Store struct {
	mu           sync.RWMutex
	nextItemID   int64
	nextPostID   int64
	items        map[int64]domain.IngestItem
	posts        map[int64]domain.Post
	enhancements map[int64][]domain.Enhancement
	options      map[string]string
	now          func() time.Time
}

var (
	_ ports.IngestStore  = (*Store)(nil)
	_ ports.ContentStore = (*Store)(nil)
	_ ports.OptionStore  = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextItemID:   1,
		nextPostID:   1,
		items:        make(map[int64]domain.IngestItem),
		posts:        make(map[int64]domain.Post),
		enhancements: make(map[int64][]domain.Enhancement),
		options:      make(map[string]string),
		now:          time.Now,
	}
}

// Create stores a new item; a blank stage defaults to new.
func (s *Store) Create(_ context.Context, item domain.IngestItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Stage == "" {
		item.Stage = domain.StageNew
	}
	if !item.Stage.Valid() {
		return 0, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidTransition, item.Stage)
	}

	meta, err := roundTripMap(item.Meta)
	if err != nil {
		return 0, err
	}

	item.ID = s.nextItemID
	s.nextItemID++
	item.Payload = item.Payload.Clone()
	item.Meta = meta
	item.CreatedAt = s.now()
	item.UpdatedAt = item.CreatedAt
	s.items[item.ID] = item
	return item.ID, nil
}

// Load returns a deep copy of the item.
func (s *Store) Load(_ context.Context, id int64) (domain.IngestItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return domain.IngestItem{}, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	meta, _ := roundTripMap(item.Meta)
	item.Payload = item.Payload.Clone()
	item.Meta = meta
	return item, nil
}

// SavePayload replaces the payload.
func (s *Store) SavePayload(_ context.Context, id int64, payload domain.Payload) error {
	return s.update(id, func(item *domain.IngestItem) error {
		item.Payload = payload.Clone()
		return nil
	})
}

// SetTargetType updates the target type.
func (s *Store) SetTargetType(_ context.Context, id int64, target domain.TargetType) error {
	return s.update(id, func(item *domain.IngestItem) error {
		item.TargetType = target
		return nil
	})
}

// SetMeta writes one meta field.
func (s *Store) SetMeta(_ context.Context, id int64, key string, value any) error {
	v, err := roundTrip(value)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", key, err)
	}
	return s.update(id, func(item *domain.IngestItem) error {
		if item.Meta == nil {
			item.Meta = map[string]any{}
		}
		item.Meta[key] = v
		return nil
	})
}

// Meta reads one meta field.
func (s *Store) Meta(_ context.Context, id int64, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, false, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	v, ok := item.Meta[key]
	if !ok {
		return nil, false, nil
	}
	v, err := roundTrip(v)
	return v, true, err
}

// TransitionStage moves the item when it still sits at from.
func (s *Store) TransitionStage(_ context.Context, id int64, from, to domain.Stage) error {
	if err := domain.CheckTransition(from, to); err != nil {
		return err
	}
	return s.update(id, func(item *domain.IngestItem) error {
		if item.Stage != from {
			return fmt.Errorf("item %d at %s, expected %s: %w", id, item.Stage, from, domain.ErrStageConflict)
		}
		item.Stage = to
		return nil
	})
}

// ListByStage returns up to limit ids waiting at stage, oldest first.
func (s *Store) ListByStage(_ context.Context, stage domain.Stage, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, item := range s.items {
		if item.Stage == stage {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) update(id int64, fn func(item *domain.IngestItem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	if err := fn(&item); err != nil {
		return err
	}
	item.UpdatedAt = s.now()
	s.items[id] = item
	return nil
}

// CreatePost stores a new post.
func (s *Store) CreatePost(_ context.Context, post domain.Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = s.nextPostID
	s.nextPostID++
	post.Meta = copyStrings(post.Meta)
	post.CreatedAt = s.now()
	post.UpdatedAt = post.CreatedAt
	s.posts[post.ID] = post
	return post.ID, nil
}

// GetPost returns a copy of the post.
func (s *Store) GetPost(_ context.Context, id int64) (domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return domain.Post{}, fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}
	post.Meta = copyStrings(post.Meta)
	return post, nil
}

// UpdatePost merges meta and optionally replaces the body.
func (s *Store) UpdatePost(_ context.Context, id int64, update domain.PostUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
	}
	if update.Body != nil {
		post.Body = *update.Body
	}
	if post.Meta == nil {
		post.Meta = map[string]string{}
	}
	for k, v := range update.Meta {
		post.Meta[k] = v
	}
	post.UpdatedAt = s.now()
	s.posts[id] = post
	return nil
}

// AppendEnhancement adds an audit entry.
func (s *Store) AppendEnhancement(_ context.Context, entry domain.Enhancement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[entry.PostID]; !ok {
		return fmt.Errorf("post %d: %w", entry.PostID, domain.ErrNotFound)
	}
	entry.ChangedFields = append([]string(nil), entry.ChangedFields...)
	s.enhancements[entry.PostID] = append(s.enhancements[entry.PostID], entry)
	return nil
}

// Enhancements lists audit entries in insertion order.
func (s *Store) Enhancements(_ context.Context, postID int64) ([]domain.Enhancement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Enhancement(nil), s.enhancements[postID]...), nil
}

// PostCount reports how many posts exist; handy in tests.
func (s *Store) PostCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Option reads a persisted option.
func (s *Store) Option(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.options[name]
	return v, ok, nil
}

// SetOption writes a persisted option.
func (s *Store) SetOption(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[name] = value
	return nil
}

func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func roundTripMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := roundTrip(v)
		if err != nil {
			return nil, fmt.Errorf("encode meta %s: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
