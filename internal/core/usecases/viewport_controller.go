package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/pkg/metrics"
)

// ErrControllerClosed is returned by Reset after Close.
var ErrControllerClosed = errors.New("viewport controller closed")

// ViewportOptions tunes a ViewportController.
type ViewportOptions struct {
	MinMoveKm      float64
	Debounce       time.Duration
	LookupDebounce time.Duration
	RadiusMeters   float64
	Limit          int
	FetchTimeout   time.Duration
}

// DefaultViewportOptions: 2 km threshold, 500/600 ms debounce, 10 km radius, 50 results.
func DefaultViewportOptions() ViewportOptions {
	return ViewportOptions{
		MinMoveKm:      2,
		Debounce:       500 * time.Millisecond,
		LookupDebounce: 600 * time.Millisecond,
		RadiusMeters:   10000,
		Limit:          50,
		FetchTimeout:   15 * time.Second,
	}
}

// ViewportSnapshot is a committed, read-only view of the controller.
type ViewportSnapshot struct {
	State             domain.FetchState
	LastFetchedCenter *domain.GeoPoint
	LiveResults       []domain.Restaurant
}

// FetchOutcome describes one committed live fetch.
type FetchOutcome struct {
	Center   domain.GeoPoint
	Returned int
	Added    int
}

// ViewportController turns a stream of map-center changes into debounced live
// searches and accumulates their results by identity key.
//
// States are Idle, Debouncing and Fetching. Moves shorter than MinMoveKm from
// the last fetched center are ignored. Only the latest debounce timer may
// fire. At most one search is in flight; a timer that fires during a search
// is run right after it. Accumulated results only shrink on Reset.
type ViewportController struct {
	search ports.LiveSearch
	clock  ports.Clock
	opts   ViewportOptions
	log    *slog.Logger
	ctx    context.Context

	mu       sync.Mutex
	last     *domain.GeoPoint
	results  []domain.Restaurant
	timer    ports.Timer
	gen      uint64 // bumped whenever pending timers become stale
	epoch    uint64 // bumped on Reset; older in-flight results are discarded
	fetching bool
	queued   *domain.GeoPoint
	closed   bool
	onFetch  func(ViewportSnapshot, FetchOutcome)
}

// NewViewportController creates a controller. ctx scopes timer-driven fetches.
func NewViewportController(ctx context.Context, search ports.LiveSearch, clock ports.Clock, opts ViewportOptions, log *slog.Logger) *ViewportController {
	if log == nil {
		log = slog.Default()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultViewportOptions().FetchTimeout
	}
	return &ViewportController{
		search: search,
		clock:  clock,
		opts:   opts,
		log:    log,
		ctx:    ctx,
	}
}

// OnFetch registers a listener called after every committed fetch, outside
// the controller lock.
func (c *ViewportController) OnFetch(fn func(ViewportSnapshot, FetchOutcome)) {
	c.mu.Lock()
	c.onFetch = fn
	c.mu.Unlock()
}

// OnCenterChange handles an ordinary pan. It reports whether a fetch was scheduled.
func (c *ViewportController) OnCenterChange(center domain.GeoPoint) bool {
	return c.schedule(center, c.opts.Debounce)
}

// OnLookupCenter handles a center produced by an address or postal lookup.
func (c *ViewportController) OnLookupCenter(center domain.GeoPoint) bool {
	return c.schedule(center, c.opts.LookupDebounce)
}

func (c *ViewportController) schedule(center domain.GeoPoint, delay time.Duration) bool {
	if !center.Valid() {
		c.log.Warn("ignoring invalid viewport center", "lat", center.Lat, "lng", center.Lng)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.suppressedLocked(center) {
		metrics.ViewportSuppressed.Inc()
		c.log.Debug("viewport move below threshold", "lat", center.Lat, "lng", center.Lng)
		return false
	}

	if c.timer != nil {
		c.timer.Stop()
		metrics.ViewportDebounceRestarts.Inc()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(delay, func() { c.fire(gen, center) })
	return true
}

func (c *ViewportController) suppressedLocked(center domain.GeoPoint) bool {
	return c.last != nil && distanceKm(*c.last, center) < c.opts.MinMoveKm
}

// fire runs when a debounce timer elapses.
func (c *ViewportController) fire(gen uint64, center domain.GeoPoint) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.fetching {
		c.queued = &center
		c.mu.Unlock()
		return
	}
	c.fetching = true
	c.mu.Unlock()

	_ = c.run(c.ctx, center)
}

// Reset clears accumulated results and the last fetched center, then fetches
// center without debouncing. If a search is already in flight the new fetch
// runs as soon as it completes and Reset returns nil.
func (c *ViewportController) Reset(ctx context.Context, center domain.GeoPoint) error {
	if !center.Valid() {
		return domain.ErrInvalidCoordinates
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.epoch++
	c.results = nil
	c.last = nil
	if c.fetching {
		c.queued = &center
		c.mu.Unlock()
		return nil
	}
	c.queued = nil
	c.fetching = true
	c.mu.Unlock()

	return c.run(ctx, center)
}

// run performs fetches until no queued center remains. It returns the error
// of the first fetch.
func (c *ViewportController) run(ctx context.Context, center domain.GeoPoint) error {
	first := true
	var firstErr error
	for {
		next, more, err := c.fetchOnce(ctx, center)
		if first {
			firstErr = err
			first = false
		}
		if !more {
			return firstErr
		}
		center = next
	}
}

func (c *ViewportController) fetchOnce(ctx context.Context, center domain.GeoPoint) (domain.GeoPoint, bool, error) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	start := time.Now()
	found, err := c.search.SearchNear(fctx, center, c.opts.RadiusMeters, c.opts.Limit)
	cancel()
	metrics.LiveSearchDuration.Observe(time.Since(start).Seconds())

	var (
		snap     ViewportSnapshot
		outcome  FetchOutcome
		listener func(ViewportSnapshot, FetchOutcome)
	)

	c.mu.Lock()
	switch {
	case err != nil:
		metrics.ViewportFetches.WithLabelValues("error").Inc()
		c.log.Warn("live search failed", "lat", center.Lat, "lng", center.Lng, "error", err)
	case epoch != c.epoch:
		metrics.ViewportFetches.WithLabelValues("stale").Inc()
		c.log.Debug("discarding live results from before reset", "lat", center.Lat, "lng", center.Lng)
	default:
		merged, added := UnionByIdentity(c.results, found)
		c.results = merged
		committed := center
		c.last = &committed
		outcome = FetchOutcome{Center: center, Returned: len(found), Added: added}
		listener = c.onFetch
		metrics.ViewportFetches.WithLabelValues("ok").Inc()
		metrics.ViewportLiveResults.Observe(float64(len(merged)))
	}

	next, more := c.dequeueLocked()
	if listener != nil {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()

	if listener != nil {
		listener(snap, outcome)
	}
	return next, more, err
}

// dequeueLocked pops the queued center, or marks the controller idle.
func (c *ViewportController) dequeueLocked() (domain.GeoPoint, bool) {
	for c.queued != nil && !c.closed {
		next := *c.queued
		c.queued = nil
		if c.suppressedLocked(next) {
			metrics.ViewportSuppressed.Inc()
			continue
		}
		return next, true
	}
	c.queued = nil
	c.fetching = false
	return domain.GeoPoint{}, false
}

// State returns the current state machine state.
func (c *ViewportController) State() domain.FetchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *ViewportController) stateLocked() domain.FetchState {
	switch {
	case c.fetching:
		return domain.FetchFetching
	case c.timer != nil:
		return domain.FetchDebouncing
	default:
		return domain.FetchIdle
	}
}

// Snapshot returns a copy of the committed state.
func (c *ViewportController) Snapshot() ViewportSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *ViewportController) snapshotLocked() ViewportSnapshot {
	s := ViewportSnapshot{
		State:       c.stateLocked(),
		LiveResults: append([]domain.Restaurant(nil), c.results...),
	}
	if c.last != nil {
		last := *c.last
		s.LastFetchedCenter = &last
	}
	return s
}

// Close cancels any pending timer. A search already in flight still commits.
func (c *ViewportController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.queued = nil
}
