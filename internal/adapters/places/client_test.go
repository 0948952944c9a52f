package places_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/samirrijal/dineradar/internal/adapters/places"
	"github.com/samirrijal/dineradar/internal/core/domain"
)

const nearbyOK = `{
  "status": "OK",
  "results": [
    {"place_id": "abc", "name": "Cafe X", "vicinity": "1 Main St",
     "geometry": {"location": {"lat": 40.7128, "lng": -74.006}},
     "types": ["cafe", "restaurant", "food"], "rating": 4.3, "price_level": 2},
    {"place_id": "nogeo", "name": "No Geometry", "geometry": {}},
    {"place_id": "def", "name": "Pho 5",
     "geometry": {"location": {"lat": 40.713, "lng": -74.005}},
     "types": ["vietnamese_restaurant"]}
  ]
}`

func newClient(url string) *places.Client {
	return places.New(places.Config{BaseURL: url, APIKey: "test-key", FailureThreshold: 2}, nil)
}

func TestClient_SearchNear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nearbysearch/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("location") != "40.712800,-74.006000" || q.Get("radius") != "10000" || q.Get("key") != "test-key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nearbyOK))
	}))
	defer srv.Close()

	got, err := newClient(srv.URL).SearchNear(context.Background(), domain.GeoPoint{Lat: 40.7128, Lng: -74.006}, 10000, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 restaurants (one rejected), got %d", len(got))
	}
	if got[0].ID != "live-abc" || got[0].Provenance != domain.ProvenanceLive {
		t.Errorf("unexpected first result %+v", got[0])
	}
	if len(got[0].CuisineType) != 1 || got[0].CuisineType[0] != "cafe" {
		t.Errorf("unexpected cuisines %v", got[0].CuisineType)
	}
	if got[1].CuisineType[0] != "vietnamese" {
		t.Errorf("expected restaurant suffix stripped, got %v", got[1].CuisineType)
	}
}

func TestClient_SearchNear_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(nearbyOK))
	}))
	defer srv.Close()

	got, err := newClient(srv.URL).SearchNear(context.Background(), domain.GeoPoint{Lat: 1, Lng: 1}, 1000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected limit of 1, got %d", len(got))
	}
}

func TestClient_SearchNear_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	got, err := newClient(srv.URL).SearchNear(context.Background(), domain.GeoPoint{Lat: 1, Lng: 1}, 1000, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v, %v", got, err)
	}
}

func TestClient_SearchNear_UpstreamErrorOpensBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"quota"}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	if c.BreakerState() != "closed" {
		t.Fatalf("expected a closed breaker, got %q", c.BreakerState())
	}
	for i := 0; i < 2; i++ {
		_, err := c.SearchNear(context.Background(), domain.GeoPoint{Lat: 1, Lng: 1}, 1000, 10)
		if !errors.Is(err, places.ErrUpstream) {
			t.Fatalf("call %d: expected ErrUpstream, got %v", i, err)
		}
	}
	if c.BreakerState() != "open" {
		t.Errorf("expected an open breaker after two failures, got %q", c.BreakerState())
	}

	if _, err := c.SearchNear(context.Background(), domain.GeoPoint{Lat: 1, Lng: 1}, 1000, 10); err == nil {
		t.Fatal("expected breaker to reject the call")
	}
	if hits.Load() != 2 {
		t.Errorf("open breaker must not reach upstream, got %d hits", hits.Load())
	}
}

func TestClient_SearchNear_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).SearchNear(context.Background(), domain.GeoPoint{Lat: 1, Lng: 1}, 1000, 10)
	if !errors.Is(err, places.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}
