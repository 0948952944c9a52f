package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
)

// --- Fake clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers in deadline order on the
// calling goroutine. Callbacks may call Advance again.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.fn()
	}
}

// Pending returns the number of armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// --- Mock PersistedCatalog ---

type mockCatalog struct {
	getAllFn      func(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error)
	getByIDFn     func(ctx context.Context, id string) (*domain.Restaurant, error)
	findNearbyFn  func(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error)
	upsertBatchFn func(ctx context.Context, restaurants []domain.Restaurant) (int, error)
}

func (m *mockCatalog) GetAll(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error) {
	if m.getAllFn != nil {
		return m.getAllFn(ctx, limit, cuisine)
	}
	return nil, nil
}

func (m *mockCatalog) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCatalog) FindNearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, center, radiusMeters, limit)
	}
	return nil, nil
}

func (m *mockCatalog) UpsertBatch(ctx context.Context, restaurants []domain.Restaurant) (int, error) {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, restaurants)
	}
	return len(restaurants), nil
}

// --- Mock LiveSearch ---

type mockSearch struct {
	mu       sync.Mutex
	calls    []domain.GeoPoint
	searchFn func(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error)
}

func (m *mockSearch) SearchNear(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	m.mu.Lock()
	m.calls = append(m.calls, center)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, center, radiusMeters, limit)
	}
	return nil, nil
}

func (m *mockSearch) Calls() []domain.GeoPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.GeoPoint(nil), m.calls...)
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	calls     int
	resolveFn func(ctx context.Context, postalCode string) (*domain.GeoPoint, error)
}

func (m *mockGeocoder) Resolve(ctx context.Context, postalCode string) (*domain.GeoPoint, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, postalCode)
	}
	return nil, nil
}

// --- In-memory cache ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Recording publisher ---

type recordingEvents struct {
	mu      sync.Mutex
	synced  []domain.CatalogSyncedEvent
	fetched []domain.ViewportFetchedEvent
	focus   []domain.FocusEvent
}

func (e *recordingEvents) PublishCatalogSynced(_ context.Context, ev *domain.CatalogSyncedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.synced = append(e.synced, *ev)
	return nil
}

func (e *recordingEvents) PublishViewportFetched(_ context.Context, ev *domain.ViewportFetchedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetched = append(e.fetched, *ev)
	return nil
}

func (e *recordingEvents) PublishFocus(_ context.Context, ev *domain.FocusEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focus = append(e.focus, *ev)
	return nil
}

// --- Recording sink ---

type recordingSink struct {
	mu    sync.Mutex
	views []domain.MapView
	flys  []domain.FlyTo
}

func (s *recordingSink) SendView(v domain.MapView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
	return nil
}

func (s *recordingSink) SendFlyTo(f domain.FlyTo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flys = append(s.flys, f)
	return nil
}

func (s *recordingSink) lastView() domain.MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return domain.MapView{}
	}
	return s.views[len(s.views)-1]
}

// --- Fixtures ---

func ptr[T any](v T) *T { return &v }

func restaurant(id, name string, lat, lng float64) domain.Restaurant {
	return domain.Restaurant{
		ID:          id,
		Name:        name,
		Coordinates: domain.GeoPoint{Lat: lat, Lng: lng},
		Provenance:  domain.ProvenancePersisted,
	}
}

func liveRestaurant(id, name string, lat, lng float64) domain.Restaurant {
	r := restaurant(domain.LiveIDPrefix+id, name, lat, lng)
	r.Provenance = domain.ProvenanceLive
	return r
}

func ids(list []domain.Restaurant) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}
