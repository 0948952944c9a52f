package ports

import (
	"context"
	"time"

	"github.com/samirrijal/dineradar/internal/core/domain"
)

// LiveSearch is a third-party place search queried by viewport.
// Result ids carry domain.LiveIDPrefix.
type LiveSearch interface {
	SearchNear(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error)
}

// Geocoder resolves a postal code to a point. It returns nil, nil when the
// code is unknown.
type Geocoder interface {
	Resolve(ctx context.Context, postalCode string) (*domain.GeoPoint, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishCatalogSynced(ctx context.Context, event *domain.CatalogSyncedEvent) error
	PublishViewportFetched(ctx context.Context, event *domain.ViewportFetchedEvent) error
	PublishFocus(ctx context.Context, event *domain.FocusEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeCatalogSynced(ctx context.Context, handler func(ctx context.Context, event *domain.CatalogSyncedEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// MapSink receives updates for one map client.
type MapSink interface {
	SendView(view domain.MapView) error
	SendFlyTo(target domain.FlyTo) error
}

// Clock abstracts wall time and timers so state machines can be driven
// deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}
