package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/dineradar/internal/core/domain"
)

// CatalogSyncInput is the input for the catalog sync workflow.
type CatalogSyncInput struct {
	Center       domain.GeoPoint
	RadiusMeters float64
	Limit        int
}

// CatalogSyncResult reports what a sync run did.
type CatalogSyncResult struct {
	Found     int
	Inserted  int
	Published bool
}

// CatalogSyncWorkflow promotes live places around a center into the
// persisted catalog: search, merge-and-upsert, then announce. A failed
// announcement does not fail the run since the rows are already stored.
func CatalogSyncWorkflow(ctx workflow.Context, input CatalogSyncInput) (CatalogSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	var result CatalogSyncResult

	if !input.Center.Valid() {
		return result, temporal.NewNonRetryableApplicationError("invalid center", "InvalidInput", errors.New("invalid coordinates"))
	}
	if input.RadiusMeters <= 0 {
		input.RadiusMeters = 5000
	}
	if input.Limit <= 0 {
		input.Limit = 60
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var live []domain.Restaurant
	if err := workflow.ExecuteActivity(ctx, ActivitySearchLive, input).Get(ctx, &live); err != nil {
		return result, err
	}
	result.Found = len(live)
	if len(live) == 0 {
		logger.Info("no live places found, nothing to sync")
		return result, nil
	}

	if err := workflow.ExecuteActivity(ctx, ActivityMergeIntoCatalog, input, live).Get(ctx, &result.Inserted); err != nil {
		return result, err
	}

	if err := workflow.ExecuteActivity(ctx, ActivityPublishCatalogSynced, input, result.Inserted).Get(ctx, nil); err != nil {
		logger.Warn("catalog sync announcement failed", "error", err)
		return result, nil
	}
	result.Published = true

	logger.Info("catalog sync complete", "found", result.Found, "inserted", result.Inserted)
	return result, nil
}
