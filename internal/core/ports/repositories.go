package ports

import (
	"context"

	"github.com/samirrijal/dineradar/internal/core/domain"
)

// PersistedCatalog is the system's own durable restaurant catalog.
type PersistedCatalog interface {
	// GetAll returns up to limit records; an empty cuisine means no filter.
	GetAll(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error)
	// GetByID returns nil, nil when the id is unknown.
	GetByID(ctx context.Context, id string) (*domain.Restaurant, error)
	FindNearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error)
	// UpsertBatch stores records keyed by identity and returns how many were new.
	UpsertBatch(ctx context.Context, restaurants []domain.Restaurant) (int, error)
}

// CatalogRecord is a raw catalog row before normalization.
type CatalogRecord struct {
	ID         string
	Name       string
	Address    string
	PostalCode string
	Lat        *float64
	Lng        *float64
	Cuisines   []string
	PriceRange *int
	Rating     *float64
	Attributes *domain.Attributes
}

// PlaceResult is a raw live place-search result before normalization.
type PlaceResult struct {
	PlaceID    string
	Name       string
	Vicinity   string
	PostalCode string
	Lat        *float64
	Lng        *float64
	Types      []string
	Rating     *float64
	PriceLevel *int
}
