package workflows

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/usecases"
)

// Activity names registered by the syncer worker.
const (
	ActivitySearchLive           = "SearchLive"
	ActivityMergeIntoCatalog     = "MergeIntoCatalog"
	ActivityPublishCatalogSynced = "PublishCatalogSynced"
)

// CatalogSyncActivities holds the activity implementations for the catalog
// sync workflow.
type CatalogSyncActivities struct {
	Sync *usecases.CatalogSyncService
}

// SearchLive queries the live place search around the input center.
func (a *CatalogSyncActivities) SearchLive(ctx context.Context, in CatalogSyncInput) ([]domain.Restaurant, error) {
	activity.GetLogger(ctx).Info("searching live places", "lat", in.Center.Lat, "lng", in.Center.Lng)
	return a.Sync.SearchLive(ctx, in.Center, in.RadiusMeters, in.Limit)
}

// MergeIntoCatalog stores the live results that are new to the catalog and
// returns how many rows were inserted.
func (a *CatalogSyncActivities) MergeIntoCatalog(ctx context.Context, in CatalogSyncInput, live []domain.Restaurant) (int, error) {
	return a.Sync.MergeIntoCatalog(ctx, in.Center, in.RadiusMeters, live)
}

// PublishCatalogSynced announces the sync on the message broker.
func (a *CatalogSyncActivities) PublishCatalogSynced(ctx context.Context, in CatalogSyncInput, inserted int) error {
	return a.Sync.PublishSynced(ctx, in.Center, in.RadiusMeters, inserted)
}
