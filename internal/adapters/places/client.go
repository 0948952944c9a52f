// Package places queries the Google Places Nearby Search API for live
// restaurant results.
package places

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
	"github.com/samirrijal/dineradar/internal/core/usecases"
)

// ErrUpstream is returned for non-OK API statuses.
var ErrUpstream = errors.New("places upstream error")

// Config configures a Client.
type Config struct {
	BaseURL          string
	APIKey           string
	Keyword          string
	RatePerSecond    float64
	Burst            int
	FailureThreshold uint32
	Timeout          time.Duration
}

// Client implements ports.LiveSearch.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]ports.PlaceResult]
	norm    *usecases.Normalizer
	log     *slog.Logger
}

var _ ports.LiveSearch = (*Client)(nil)

// New creates a Client.
func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		norm:    usecases.NewNormalizer(log),
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]ports.PlaceResult](gobreaker.Settings{
		Name:        "places",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// SearchNear returns up to limit normalized restaurants within radiusMeters of center.
func (c *Client) SearchNear(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	raw, err := c.breaker.Execute(func() ([]ports.PlaceResult, error) {
		return c.nearby(ctx, center, radiusMeters)
	})
	if err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}

	found := c.norm.Places(raw)
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (c *Client) nearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64) ([]ports.PlaceResult, error) {
	q := url.Values{
		"location": {strconv.FormatFloat(center.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(center.Lng, 'f', 6, 64)},
		"radius":   {strconv.Itoa(int(radiusMeters))},
		"type":     {"restaurant"},
		"key":      {c.cfg.APIKey},
	}
	if c.cfg.Keyword != "" {
		q.Set("keyword", c.cfg.Keyword)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/nearbysearch/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrUpstream, resp.StatusCode)
	}

	var body nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrUpstream, body.Status, body.ErrorMessage)
	}

	out := make([]ports.PlaceResult, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, r.toPort())
	}
	return out, nil
}
