package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"HappyPlaceLocal/internal/config"
)

const detailsJSON = `{
  "html_attributions": [],
  "status": "OK",
  "result": {
    "place_id": "ChIJ-blue-door",
    "name": "Blue Door Coffee",
    "formatted_address": "12 Main St, Springfield",
    "formatted_phone_number": "(555) 010-2000",
    "international_phone_number": "+1 555-010-2000",
    "website": "https://bluedoor.example",
    "url": "https://maps.google.com/?cid=1",
    "rating": 4.7,
    "user_ratings_total": 212,
    "price_level": 2,
    "business_status": "OPERATIONAL",
    "types": ["cafe", "food", "establishment"],
    "geometry": {"location": {"lat": 40.7, "lng": -74.0}},
    "opening_hours": {"open_now": true, "weekday_text": ["Monday: 7:00 AM - 3:00 PM"]},
    "photos": [{"photo_reference": "ref-1", "height": 10, "width": 10}]
  }
}`

func TestDetailsConvertsResult(t *testing.T) {
	t.Parallel()

	var gotKey, gotPlace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/details/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.URL.Query().Get("key")
		gotPlace = r.URL.Query().Get("placeid")
		if gotPlace == "" {
			gotPlace = r.URL.Query().Get("place_id")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(detailsJSON))
	}))
	t.Cleanup(srv.Close)

	client := NewGoogleClient(config.PlacesConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, nil)
	d, err := client.Details(context.Background(), "AIza-test", "ChIJ-blue-door")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}

	if gotKey != "AIza-test" || gotPlace != "ChIJ-blue-door" {
		t.Fatalf("unexpected query key=%q place=%q", gotKey, gotPlace)
	}
	if d.Name != "Blue Door Coffee" || d.Rating != 4.7 || d.UserRatingsTotal != 212 || d.PriceLevel != 2 {
		t.Fatalf("unexpected details %+v", d)
	}
	if d.Lat != 40.7 || d.Lng != -74.0 {
		t.Fatalf("unexpected location %v,%v", d.Lat, d.Lng)
	}
	if len(d.PhotoReferences) != 1 || d.PhotoReferences[0] != "ref-1" {
		t.Fatalf("unexpected photos %v", d.PhotoReferences)
	}
	if d.OpeningHours["open_now"] != true {
		t.Fatalf("unexpected hours %v", d.OpeningHours)
	}
}

func TestDetailsSurfacesAPIStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND","html_attributions":[]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewGoogleClient(config.PlacesConfig{Endpoint: srv.URL}, nil)
	if _, err := client.Details(context.Background(), "AIza-test", "missing"); err == nil {
		t.Fatalf("expected error for NOT_FOUND status")
	}
}

func TestDetailsRequiresPlaceID(t *testing.T) {
	t.Parallel()

	client := NewGoogleClient(config.PlacesConfig{}, nil)
	if _, err := client.Details(context.Background(), "AIza-test", " "); err == nil {
		t.Fatalf("expected error for blank place id")
	}
}

func TestClientIsReusedPerKey(t *testing.T) {
	t.Parallel()

	g := NewGoogleClient(config.PlacesConfig{}, nil)
	a, err := g.client("AIza-one")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	b, _ := g.client("AIza-one")
	c, _ := g.client("AIza-two")
	if a != b || a == c {
		t.Fatalf("expected one client per key")
	}
}
