// Package geocoder resolves postal codes to coordinates with OSM Nominatim.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
)

// ErrUpstream is returned for non-200 responses.
var ErrUpstream = errors.New("geocoder upstream error")

// Config configures a Nominatim client.
type Config struct {
	BaseURL       string
	UserAgent     string
	CountryCodes  string
	RatePerSecond float64
	Timeout       time.Duration
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Nominatim implements ports.Geocoder. The public instance allows one request
// per second, which is the default rate.
type Nominatim struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*domain.GeoPoint]
	log     *slog.Logger
}

var _ ports.Geocoder = (*Nominatim)(nil)

// New creates a Nominatim client.
func New(cfg Config, log *slog.Logger) *Nominatim {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "dineradar/1.0"
	}
	return &Nominatim{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker[*domain.GeoPoint](gobreaker.Settings{
			Name:    "geocoder",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		log: log,
	}
}

// BreakerState reports the circuit breaker state.
func (n *Nominatim) BreakerState() string { return n.breaker.State().String() }

// Resolve returns the center of postalCode, or nil, nil if Nominatim has no match.
func (n *Nominatim) Resolve(ctx context.Context, postalCode string) (*domain.GeoPoint, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return n.breaker.Execute(func() (*domain.GeoPoint, error) {
		return n.search(ctx, postalCode)
	})
}

func (n *Nominatim) search(ctx context.Context, postalCode string) (*domain.GeoPoint, error) {
	q := url.Values{
		"postalcode": {postalCode},
		"format":     {"json"},
		"limit":      {"1"},
	}
	if n.cfg.CountryCodes != "" {
		q.Set("countrycodes", n.cfg.CountryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)

	resp, err := n.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		n.log.Debug("postal code not found", "postal_code", postalCode)
		return nil, nil
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLng != nil {
		return nil, fmt.Errorf("%w: unparseable coordinates %q,%q", ErrUpstream, results[0].Lat, results[0].Lon)
	}
	pt := domain.GeoPoint{Lat: lat, Lng: lng}
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, domain.ErrInvalidCoordinates)
	}
	return &pt, nil
}
