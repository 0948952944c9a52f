package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
)

// CatalogSyncService promotes live search results into the persisted catalog.
type CatalogSyncService struct {
	catalog ports.PersistedCatalog
	search  ports.LiveSearch
	events  ports.EventPublisher
	clock   ports.Clock
	log     *slog.Logger
}

// NewCatalogSyncService creates a CatalogSyncService. events may be nil.
func NewCatalogSyncService(catalog ports.PersistedCatalog, search ports.LiveSearch, events ports.EventPublisher, clock ports.Clock, log *slog.Logger) *CatalogSyncService {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogSyncService{catalog: catalog, search: search, events: events, clock: clock, log: log}
}

// SearchLive runs one live search around center.
func (s *CatalogSyncService) SearchLive(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	if !center.Valid() {
		return nil, domain.ErrInvalidCoordinates
	}
	found, err := s.search.SearchNear(ctx, center, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("live search: %w", err)
	}
	return found, nil
}

// MergeIntoCatalog merges live into the persisted restaurants around center
// and upserts the rows that are new to the catalog. Live ids are stripped of
// their prefix so the stored id is the upstream place id. It returns the
// number of rows inserted.
func (s *CatalogSyncService) MergeIntoCatalog(ctx context.Context, center domain.GeoPoint, radiusMeters float64, live []domain.Restaurant) (int, error) {
	persisted, err := s.catalog.FindNearby(ctx, center, radiusMeters, maxNearbyLimit)
	if err != nil {
		return 0, fmt.Errorf("find nearby: %w", err)
	}

	known := make(map[string]bool, len(persisted))
	for _, r := range persisted {
		known[domain.IdentityKey(r)] = true
	}

	var fresh []domain.Restaurant
	for _, r := range Merge(persisted, live) {
		if known[domain.IdentityKey(r)] || r.Provenance != domain.ProvenanceLive {
			continue
		}
		r.ID = domain.StoredID(r.ID)
		r.Provenance = domain.ProvenancePersisted
		r.DistanceKm = nil
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	inserted, err := s.catalog.UpsertBatch(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}
	s.log.Info("catalog synced", "lat", center.Lat, "lng", center.Lng, "candidates", len(fresh), "inserted", inserted)
	return inserted, nil
}

// PublishSynced announces a completed sync. It is a no-op without a publisher.
func (s *CatalogSyncService) PublishSynced(ctx context.Context, center domain.GeoPoint, radiusMeters float64, inserted int) error {
	if s.events == nil {
		return nil
	}
	now := time.Now()
	if s.clock != nil {
		now = s.clock.Now()
	}
	event := &domain.CatalogSyncedEvent{
		Center:       center,
		RadiusMeters: radiusMeters,
		Inserted:     inserted,
		SyncedAt:     now.UTC(),
	}
	if err := s.events.PublishCatalogSynced(ctx, event); err != nil {
		return fmt.Errorf("publish catalog synced: %w", err)
	}
	return nil
}

// Sync runs search, merge and publish in one call.
func (s *CatalogSyncService) Sync(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) (int, error) {
	live, err := s.SearchLive(ctx, center, radiusMeters, limit)
	if err != nil {
		return 0, err
	}
	inserted, err := s.MergeIntoCatalog(ctx, center, radiusMeters, live)
	if err != nil {
		return 0, err
	}
	return inserted, s.PublishSynced(ctx, center, radiusMeters, inserted)
}
