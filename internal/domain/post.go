package domain

import "time"

// Post types and statuses of public content records.
const (
	PostTypePlace = "local_place"
	PostTypeEvent = "event"

	PostStatusPublish = "publish"
	PostStatusDraft   = "draft"
)

// Post is a public content record created by Publish.
type Post struct {
	ID        int64
	Type      string
	Title     string
	Body      string
	Status    string
	Meta      map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostUpdate merges into an existing post. A nil Body leaves content untouched.
type PostUpdate struct {
	Body *string
	Meta map[string]string
}

// Enhancement is an append-only audit entry written by re-import updates.
type Enhancement struct {
	ID            string
	PostID        int64
	ItemID        int64
	Score         int
	ChangedFields []string
	CreatedAt     time.Time
}

// PlaceDetails is the subset of a place-details response the pipeline merges.
type PlaceDetails struct {
	PlaceID                  string
	Name                     string
	FormattedAddress         string
	FormattedPhoneNumber     string
	InternationalPhoneNumber string
	Website                  string
	URL                      string
	Rating                   float64
	UserRatingsTotal         int
	PriceLevel               int
	BusinessStatus           string
	Lat                      float64
	Lng                      float64
	Types                    []string
	OpeningHours             map[string]any
	PhotoReferences          []string
}

// Message is one chat turn sent to the language model.
type Message struct {
	Role    string
	Content string
}

// Chat roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)
