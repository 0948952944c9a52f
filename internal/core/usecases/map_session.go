package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/pkg/geospatial"
	"github.com/samirrijal/dineradar/internal/pkg/metrics"
)

// MapSessionDeps are the collaborators of a map session. Events may be nil.
type MapSessionDeps struct {
	Catalog  ports.PersistedCatalog
	Search   ports.LiveSearch
	Geocoder ports.Geocoder
	Events   ports.EventPublisher
	Clock    ports.Clock
	Sink     ports.MapSink
	Log      *slog.Logger
}

// MapSessionOptions tunes a map session.
type MapSessionOptions struct {
	Viewport     ViewportOptions
	FocusTimeout time.Duration
	CatalogLimit int
	// ListRadiusKm limits the list to restaurants near the map center; 0 disables it.
	ListRadiusKm float64
}

// DefaultMapSessionOptions returns the standard session tuning.
func DefaultMapSessionOptions() MapSessionOptions {
	return MapSessionOptions{
		Viewport:     DefaultViewportOptions(),
		FocusTimeout: DefaultFocusTimeout,
		CatalogLimit: 500,
	}
}

// MapSession keeps one client's list, map viewport and focus consistent. It
// owns a ViewportController for live results and a Selection for focus
// overrides, and pushes every committed change to the sink.
type MapSession struct {
	id        string
	deps      MapSessionDeps
	opts      MapSessionOptions
	log       *slog.Logger
	viewport  *ViewportController
	selection *Selection

	mu        sync.Mutex
	persisted []domain.Restaurant
	center    *domain.GeoPoint
	postal    string
	bounds    *orb.Bound
}

// NewMapSession creates a session. ctx scopes background fetches.
func NewMapSession(ctx context.Context, deps MapSessionDeps, opts MapSessionOptions) *MapSession {
	id := uuid.NewString()
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", id)

	s := &MapSession{
		id:        id,
		deps:      deps,
		opts:      opts,
		log:       log,
		viewport:  NewViewportController(ctx, deps.Search, deps.Clock, opts.Viewport, log),
		selection: NewSelection(deps.Clock, opts.FocusTimeout),
	}
	s.viewport.OnFetch(s.handleFetch)
	s.selection.OnExpire(func(id string) {
		s.log.Debug("focus override expired", "id", id)
		s.push()
	})
	return s
}

// ID returns the session id.
func (s *MapSession) ID() string { return s.id }

// Start loads the catalog snapshot and runs the first live fetch around center.
func (s *MapSession) Start(ctx context.Context, center domain.GeoPoint) error {
	if !center.Valid() {
		return domain.ErrInvalidCoordinates
	}
	if err := s.RefreshCatalog(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.center = &center
	s.mu.Unlock()

	if err := s.viewport.Reset(ctx, center); err != nil {
		// live data is optional; the persisted snapshot still renders
		s.log.Warn("initial live fetch failed", "error", err)
	}
	s.push()
	return nil
}

// RefreshCatalog reloads the persisted snapshot.
func (s *MapSession) RefreshCatalog(ctx context.Context) error {
	persisted, err := s.deps.Catalog.GetAll(ctx, s.opts.CatalogLimit, "")
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	s.mu.Lock()
	s.persisted = persisted
	s.mu.Unlock()
	s.push()
	return nil
}

// OnCenterChange forwards an ordinary pan to the viewport controller.
func (s *MapSession) OnCenterChange(center domain.GeoPoint) {
	if !center.Valid() {
		return
	}
	s.mu.Lock()
	s.center = &center
	s.mu.Unlock()

	s.viewport.OnCenterChange(center)
	s.push()
}

// OnLookupCenter moves to an address-lookup result with the longer debounce.
func (s *MapSession) OnLookupCenter(center domain.GeoPoint) {
	if !center.Valid() {
		return
	}
	s.mu.Lock()
	s.center = &center
	s.mu.Unlock()

	s.viewport.OnLookupCenter(center)
	s.push()
}

// JumpToPostalCode geocodes code, filters the list to it and restarts live
// results from the new center.
func (s *MapSession) JumpToPostalCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrInvalidPostalCode
	}
	pt, err := s.deps.Geocoder.Resolve(ctx, code)
	if err != nil {
		s.log.Warn("geocode failed", "postal_code", code, "error", err)
		return fmt.Errorf("geocode %s: %w", code, err)
	}
	if pt == nil {
		return fmt.Errorf("postal code %s: %w", code, domain.ErrNotFound)
	}

	s.mu.Lock()
	center := *pt
	s.center = &center
	s.postal = code
	s.mu.Unlock()

	if err := s.viewport.Reset(ctx, center); err != nil && !errors.Is(err, ErrControllerClosed) {
		s.log.Warn("live fetch after postal jump failed", "postal_code", code, "error", err)
	}
	s.push()
	return nil
}

// SetPostalFilter restricts the list to one postal code; "" clears it.
func (s *MapSession) SetPostalFilter(code string) {
	s.mu.Lock()
	s.postal = strings.TrimSpace(code)
	s.mu.Unlock()
	s.push()
}

// OnBoundsChange records the plotted bounds and returns the restaurants
// visible inside them.
func (s *MapSession) OnBoundsChange(b domain.Bounds) []domain.Restaurant {
	if !b.Valid() {
		return nil
	}
	bound := geospatial.Bound(b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
	s.mu.Lock()
	s.bounds = &bound
	s.mu.Unlock()

	view := s.push()
	return view.Visible
}

// FocusRestaurant focuses id on the map. A restaurant hidden by the postal
// filter clears that filter and is force-included until it resolves or the
// focus times out. Unknown ids are a no-op returning domain.ErrNotFound.
// Calling it again with the same id is safe.
func (s *MapSession) FocusRestaurant(id string) (domain.FlyTo, error) {
	s.mu.Lock()
	persisted := s.persisted
	s.mu.Unlock()
	live := s.viewport.Snapshot().LiveResults
	merged := Merge(persisted, live)

	visible := WithOverrides(s.baseList(merged), s.selection.Overrides())
	target, err := s.selection.Focus(id, visible, merged, live, persisted)
	if err != nil {
		metrics.FocusRequests.WithLabelValues("not_found").Inc()
		s.publishFocus(id, "", "not_found")
		return domain.FlyTo{}, err
	}

	outcome := "visible"
	switch {
	case target.Override:
		outcome = "override"
		s.mu.Lock()
		s.postal = ""
		s.mu.Unlock()
		s.selection.Observe(s.baseList(merged))
	case target.Translated:
		outcome = "translated"
	}
	metrics.FocusRequests.WithLabelValues(outcome).Inc()

	fly := domain.FlyTo{
		ID:          target.ID(),
		RequestedID: id,
		Coordinates: target.Restaurant.Coordinates,
	}
	s.push()
	if s.deps.Sink != nil {
		if err := s.deps.Sink.SendFlyTo(fly); err != nil {
			s.log.Debug("send fly-to failed", "error", err)
		}
	}
	s.publishFocus(id, fly.ID, outcome)
	return fly, nil
}

// View returns the current list/map state.
func (s *MapSession) View() domain.MapView {
	snap := s.viewport.Snapshot()

	s.mu.Lock()
	persisted := s.persisted
	center := s.center
	postal := s.postal
	bounds := s.bounds
	s.mu.Unlock()

	base := s.filterList(Merge(persisted, snap.LiveResults), center, postal)
	list := WithOverrides(base, s.selection.Overrides())
	if center != nil {
		list = SortByDistance(list, *center)
	}

	view := domain.MapView{
		SessionID:   s.id,
		PostalCode:  postal,
		Restaurants: list,
		FocusedID:   s.selection.FocusedID(),
		State:       snap.State,
	}
	if center != nil {
		c := *center
		view.Center = &c
	}
	if bounds != nil {
		view.Visible = InBounds(list, *bounds)
	}
	return view
}

// Close stops pending timers. It does not close the sink.
func (s *MapSession) Close() {
	s.viewport.Close()
	s.selection.Close()
}

// baseList is the filtered list without overrides.
func (s *MapSession) baseList(merged []domain.Restaurant) []domain.Restaurant {
	s.mu.Lock()
	center := s.center
	postal := s.postal
	s.mu.Unlock()
	return s.filterList(merged, center, postal)
}

func (s *MapSession) filterList(merged []domain.Restaurant, center *domain.GeoPoint, postal string) []domain.Restaurant {
	return FilterRestaurants(merged, Filter{
		Center:     center,
		RadiusKm:   s.opts.ListRadiusKm,
		PostalCode: postal,
	})
}

func (s *MapSession) handleFetch(snap ViewportSnapshot, out FetchOutcome) {
	s.mu.Lock()
	persisted := s.persisted
	s.mu.Unlock()
	if s.selection.Observe(s.baseList(Merge(persisted, snap.LiveResults))) {
		s.log.Debug("focus resolved by live results")
	}
	s.push()

	if s.deps.Events != nil {
		event := &domain.ViewportFetchedEvent{
			SessionID: s.id,
			Center:    out.Center,
			Returned:  out.Returned,
			Added:     out.Added,
			Total:     len(snap.LiveResults),
			FetchedAt: s.deps.Clock.Now(),
		}
		if err := s.deps.Events.PublishViewportFetched(context.Background(), event); err != nil {
			s.log.Debug("publish viewport fetched failed", "error", err)
		}
	}
}

func (s *MapSession) publishFocus(requested, resolved, outcome string) {
	if s.deps.Events == nil {
		return
	}
	event := &domain.FocusEvent{
		SessionID:   s.id,
		RequestedID: requested,
		ResolvedID:  resolved,
		Outcome:     outcome,
		At:          s.deps.Clock.Now(),
	}
	if err := s.deps.Events.PublishFocus(context.Background(), event); err != nil {
		s.log.Debug("publish focus failed", "error", err)
	}
}

// push sends the current view to the sink and returns it.
func (s *MapSession) push() domain.MapView {
	view := s.View()
	if s.deps.Sink != nil {
		if err := s.deps.Sink.SendView(view); err != nil {
			s.log.Debug("send view failed", "error", err)
		}
	}
	return view
}
