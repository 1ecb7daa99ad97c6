package ports

import (
	"context"
	"time"

	"HappyPlaceLocal/internal/domain"
)

// IngestStore persists ingest items: payload, meta fields and the current stage.
type IngestStore interface {
	Create(ctx context.Context, item domain.IngestItem) (int64, error)
	Load(ctx context.Context, id int64) (domain.IngestItem, error)
	SavePayload(ctx context.Context, id int64, payload domain.Payload) error
	SetTargetType(ctx context.Context, id int64, target domain.TargetType) error
	SetMeta(ctx context.Context, id int64, key string, value any) error
	Meta(ctx context.Context, id int64, key string) (any, bool, error)
	// TransitionStage moves the item only if it still sits at from; otherwise
	// it returns domain.ErrStageConflict.
	TransitionStage(ctx context.Context, id int64, from, to domain.Stage) error
	ListByStage(ctx context.Context, stage domain.Stage, limit int) ([]int64, error)
}

// ContentStore holds the public-facing records produced by Publish.
type ContentStore interface {
	CreatePost(ctx context.Context, post domain.Post) (int64, error)
	GetPost(ctx context.Context, id int64) (domain.Post, error)
	UpdatePost(ctx context.Context, id int64, update domain.PostUpdate) error
	AppendEnhancement(ctx context.Context, entry domain.Enhancement) error
	Enhancements(ctx context.Context, postID int64) ([]domain.Enhancement, error)
}

// OptionStore exposes persisted configuration options.
type OptionStore interface {
	Option(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
}

// LLM invokes a language model.
type LLM interface {
	// JSONCall must return an object conforming to schema or an error.
	JSONCall(ctx context.Context, messages []domain.Message, schema Schema) (map[string]any, error)
	TextCall(ctx context.Context, messages []domain.Message) (string, error)
}

// Schema is a named JSON Schema document used for structured calls.
type Schema struct {
	Name     string
	Document []byte
}

// PlaceDetails looks up a place by id with the given API key.
type PlaceDetails interface {
	Details(ctx context.Context, apiKey, placeID string) (domain.PlaceDetails, error)
}

// Locker serializes work on a single item id.
type Locker interface {
	// Acquire returns domain.ErrLocked when another run holds the item.
	Acquire(ctx context.Context, id int64) (release func(), err error)
}

// Notifier streams pipeline alerts to Telegram or other channels.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Scheduler controls when batch runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
