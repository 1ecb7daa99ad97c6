// Package places looks up Google Places details for enrichment.
package places

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"googlemaps.github.io/maps"

	"HappyPlaceLocal/internal/config"
	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

const defaultTimeout = 10 * time.Second

// GoogleClient implements ports.PlaceDetails over the Places details endpoint.
// The API key is resolved per call, so one maps client is kept per key.
type GoogleClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[string]*maps.Client
}

var _ ports.PlaceDetails = (*GoogleClient)(nil)

// NewGoogleClient creates the client; an empty endpoint targets Google.
func NewGoogleClient(cfg config.PlacesConfig, logger *slog.Logger) *GoogleClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GoogleClient{
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		clients: map[string]*maps.Client{},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "google-places",
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Details fetches one place.
func (g *GoogleClient) Details(ctx context.Context, apiKey, placeID string) (domain.PlaceDetails, error) {
	if strings.TrimSpace(placeID) == "" {
		return domain.PlaceDetails{}, fmt.Errorf("place id is empty")
	}
	client, err := g.client(apiKey)
	if err != nil {
		return domain.PlaceDetails{}, err
	}

	raw, err := g.cb.Execute(func() (interface{}, error) {
		return client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: placeID})
	})
	if err != nil {
		return domain.PlaceDetails{}, fmt.Errorf("place details %s: %w", placeID, err)
	}
	return convert(raw.(maps.PlaceDetailsResult)), nil
}

func (g *GoogleClient) client(apiKey string) (*maps.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(g.http)}
	if g.baseURL != "" {
		opts = append(opts, maps.WithBaseURL(g.baseURL))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	g.clients[apiKey] = c
	return c, nil
}

func convert(r maps.PlaceDetailsResult) domain.PlaceDetails {
	d := domain.PlaceDetails{
		PlaceID:                  r.PlaceID,
		Name:                     r.Name,
		FormattedAddress:         r.FormattedAddress,
		FormattedPhoneNumber:     r.FormattedPhoneNumber,
		InternationalPhoneNumber: r.InternationalPhoneNumber,
		Website:                  r.Website,
		URL:                      r.URL,
		Rating:                   math.Round(float64(r.Rating)*10) / 10,
		UserRatingsTotal:         r.UserRatingsTotal,
		PriceLevel:               r.PriceLevel,
		BusinessStatus:           r.BusinessStatus,
		Lat:                      r.Geometry.Location.Lat,
		Lng:                      r.Geometry.Location.Lng,
		Types:                    r.Types,
	}
	if h := r.OpeningHours; h != nil {
		hours := map[string]any{}
		if len(h.WeekdayText) > 0 {
			lines := make([]any, len(h.WeekdayText))
			for i, l := range h.WeekdayText {
				lines[i] = l
			}
			hours["weekday_text"] = lines
		}
		if h.OpenNow != nil {
			hours["open_now"] = *h.OpenNow
		}
		if len(hours) > 0 {
			d.OpeningHours = hours
		}
	}
	for _, p := range r.Photos {
		if p.PhotoReference != "" {
			d.PhotoReferences = append(d.PhotoReferences, p.PhotoReference)
		}
	}
	return d
}
