package geocoder_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/dineradar/internal/adapters/geocoder"
)

func TestNominatim_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/search" || q.Get("postalcode") != "10001" || q.Get("countrycodes") != "us" || q.Get("limit") != "1" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("User-Agent") != "dineradar-test" {
			t.Errorf("expected custom user agent, got %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`[{"lat":"40.7506","lon":"-73.9972","display_name":"10001, New York"}]`))
	}))
	defer srv.Close()

	g := geocoder.New(geocoder.Config{BaseURL: srv.URL, UserAgent: "dineradar-test", CountryCodes: "us", RatePerSecond: 100}, nil)
	pt, err := g.Resolve(context.Background(), "10001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pt == nil || pt.Lat != 40.7506 || pt.Lng != -73.9972 {
		t.Errorf("unexpected point %+v", pt)
	}
}

func TestNominatim_Resolve_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := geocoder.New(geocoder.Config{BaseURL: srv.URL, RatePerSecond: 100}, nil)
	pt, err := g.Resolve(context.Background(), "00000")
	if err != nil || pt != nil {
		t.Errorf("expected nil, nil; got %+v, %v", pt, err)
	}
}

func TestNominatim_Resolve_BadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"north","lon":"-73.9"}]`))
	}))
	defer srv.Close()

	g := geocoder.New(geocoder.Config{BaseURL: srv.URL, RatePerSecond: 100}, nil)
	if _, err := g.Resolve(context.Background(), "10001"); !errors.Is(err, geocoder.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestNominatim_Resolve_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := geocoder.New(geocoder.Config{BaseURL: srv.URL, RatePerSecond: 100}, nil)
	if _, err := g.Resolve(context.Background(), "10001"); !errors.Is(err, geocoder.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
	if g.BreakerState() != "closed" {
		t.Errorf("a single failure must not open the breaker, got %q", g.BreakerState())
	}
}
