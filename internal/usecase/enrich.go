package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"HappyPlaceLocal/internal/apikey"
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
	"HappyPlaceLocal/internal/stage"
)

// Messages recorded in _hpl_error by the enrich step.
const (
	msgNoPlaceID       = "No place_id available for enrichment"
	msgNoAPIKey        = "No Google Places API key configured"
	msgEmptyDetails    = "Place details response was empty"
	msgLocalityNoPlace = "Result is a locality, not a place"
)

const (
	defaultPhotoBaseURL  = "https://maps.googleapis.com/maps/api/place/photo"
	defaultPhotoMaxWidth = 1200
)

// localityTypes mark administrative results that are not businesses.
var localityTypes = map[string]bool{
	"locality":                    true,
	"sublocality":                 true,
	"political":                   true,
	"administrative_area_level_1": true,
	"administrative_area_level_2": true,
	"administrative_area_level_3": true,
	"country":                     true,
	"postal_code":                 true,
	"neighborhood":                true,
	"colloquial_area":             true,
}

// categoryByType derives a primary category when classification left it blank.
// Order matters: the first matching place type wins.
var categoryByType = []struct {
	placeType string
	category  string
}{
	{"restaurant", "Restaurant"},
	{"cafe", "Cafe"},
	{"bar", "Bar"},
	{"bakery", "Bakery"},
	{"night_club", "Nightlife"},
	{"park", "Park"},
	{"museum", "Museum"},
	{"art_gallery", "Arts"},
	{"tourist_attraction", "Attraction"},
	{"shopping_mall", "Shopping"},
	{"store", "Shopping"},
	{"gym", "Fitness"},
	{"spa", "Wellness"},
	{"lodging", "Lodging"},
}

// EnricherOptions tune the enrich step.
type EnricherOptions struct {
	PhotoBaseURL  string
	PhotoMaxWidth int
	Logger        *slog.Logger
}

// Enricher fills place payloads from the place-details service.
type Enricher struct {
	store         ports.IngestStore
	places        ports.PlaceDetails
	keys          *apikey.Resolver
	photoBaseURL  string
	photoMaxWidth int
	logger        *slog.Logger
}

var _ stage.Handler = (*Enricher)(nil)

// NewEnricher builds the enrich step.
func NewEnricher(store ports.IngestStore, places ports.PlaceDetails, keys *apikey.Resolver, opts EnricherOptions) *Enricher {
	e := &Enricher{
		store:         store,
		places:        places,
		keys:          keys,
		photoBaseURL:  opts.PhotoBaseURL,
		photoMaxWidth: opts.PhotoMaxWidth,
		logger:        opts.Logger,
	}
	if e.photoBaseURL == "" {
		e.photoBaseURL = defaultPhotoBaseURL
	}
	if e.photoMaxWidth <= 0 {
		e.photoMaxWidth = defaultPhotoMaxWidth
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Step implements stage.Handler.
func (e *Enricher) Step() domain.Step { return domain.StepEnrich }

// Run merges place details into the payload. Lookup problems are recorded and
// the item still advances; locality results are diverted to review.
func (e *Enricher) Run(ctx context.Context, item domain.IngestItem) (domain.Outcome, error) {
	if !item.TargetType.IsPlace() {
		return domain.Advanced(domain.StageEnriched), nil
	}

	payload := item.Payload.Clone()
	if isLocality(payload.Strings("types")) {
		return domain.Diverted(msgLocalityNoPlace), nil
	}

	msg, merged := e.lookup(ctx, payload)
	if merged {
		if err := e.store.SetTargetType(ctx, item.ID, domain.TargetLocalPlace); err != nil {
			return domain.Outcome{}, fmt.Errorf("confirm target type: %w", err)
		}
	}

	classification := item.Classification()
	if classification.String("primary_category") == "" {
		if category := categoryFromTypes(payload.Strings("types")); category != "" {
			classification["primary_category"] = category
			if err := e.store.SetMeta(ctx, item.ID, domain.MetaClassify, map[string]any(classification)); err != nil {
				return domain.Outcome{}, fmt.Errorf("store derived category: %w", err)
			}
		}
	}

	if err := e.store.SavePayload(ctx, item.ID, payload); err != nil {
		return domain.Outcome{}, fmt.Errorf("save payload: %w", err)
	}

	if merged && isLocality(payload.Strings("types")) {
		return domain.Diverted(msgLocalityNoPlace), nil
	}
	if msg != "" {
		return domain.Degraded(domain.StageEnriched, msg), nil
	}
	return domain.Advanced(domain.StageEnriched), nil
}

// lookup fetches and merges details in place. It returns the message to record
// when nothing was merged, and whether a merge happened.
func (e *Enricher) lookup(ctx context.Context, payload domain.Payload) (string, bool) {
	placeID := payload.String("place_id")
	if placeID == "" {
		placeID = payload.String("reference")
	}
	if placeID == "" {
		return msgNoPlaceID, false
	}

	if hasCoreFields(payload) {
		e.logger.Debug("core fields present, skipping details lookup", "place_id", placeID)
		return "", false
	}

	key, source, err := e.keys.Resolve(ctx)
	if err != nil {
		e.logger.Warn("no places api key", "error", err)
		return msgNoAPIKey, false
	}

	details, err := e.places.Details(ctx, key, placeID)
	if err != nil {
		return fmt.Sprintf("Place details lookup failed: %v", err), false
	}
	if details.PlaceID == "" && details.Name == "" {
		return msgEmptyDetails, false
	}

	e.logger.Debug("merging place details", "place_id", placeID, "key_source", source)
	mergeDetails(payload, details)
	normalizePhone(payload)
	if !payload.Has("image_url") && len(details.PhotoReferences) > 0 {
		payload["image_url"] = e.photoURL(details.PhotoReferences[0], key)
	}
	return "", true
}

func (e *Enricher) photoURL(reference, key string) string {
	q := url.Values{}
	q.Set("maxwidth", fmt.Sprint(e.photoMaxWidth))
	q.Set("photo_reference", reference)
	q.Set("key", key)
	return e.photoBaseURL + "?" + q.Encode()
}

func hasCoreFields(p domain.Payload) bool {
	return p.Has("formatted_address") && p.Has("website") && p.Has("opening_hours")
}

// mergeDetails copies whitelisted fields that carry a value; empty values never
// overwrite what the payload already has.
func mergeDetails(p domain.Payload, d domain.PlaceDetails) {
	set := func(key string, v any) {
		if !domain.IsEmpty(v) {
			p[key] = v
		}
	}

	set("place_id", d.PlaceID)
	set("name", d.Name)
	set("formatted_address", d.FormattedAddress)
	set("formatted_phone_number", d.FormattedPhoneNumber)
	set("international_phone_number", d.InternationalPhoneNumber)
	set("website", d.Website)
	set("google_maps_url", d.URL)
	set("rating", d.Rating)
	set("user_ratings_total", float64(d.UserRatingsTotal))
	set("price_level", float64(d.PriceLevel))
	set("business_status", d.BusinessStatus)
	set("lat", d.Lat)
	set("lng", d.Lng)
	if len(d.OpeningHours) > 0 {
		p["opening_hours"] = map[string]any(d.OpeningHours)
	}
	if len(d.Types) > 0 {
		types := make([]any, len(d.Types))
		for i, t := range d.Types {
			types[i] = t
		}
		p["types"] = types
	}
}

// normalizePhone keeps phone and formatted_phone_number in agreement.
func normalizePhone(p domain.Payload) {
	if !p.Has("phone") {
		if v := p.String("formatted_phone_number"); v != "" {
			p["phone"] = v
		} else if v := p.String("international_phone_number"); v != "" {
			p["phone"] = v
		}
	}
	if !p.Has("formatted_phone_number") && p.Has("phone") {
		p["formatted_phone_number"] = p.String("phone")
	}
}

func isLocality(types []string) bool {
	locality := false
	for _, t := range types {
		if t == "establishment" {
			return false
		}
		if localityTypes[t] {
			locality = true
		}
	}
	return locality
}

func categoryFromTypes(types []string) string {
	present := make(map[string]bool, len(types))
	for _, t := range types {
		present[t] = true
	}
	for _, m := range categoryByType {
		if present[m.placeType] {
			return m.category
		}
	}
	return ""
}
