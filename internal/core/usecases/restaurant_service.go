package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/pkg/metrics"
	"github.com/samirrijal/dineradar/internal/pkg/telemetry"
)

const (
	defaultNearbyLimit = 50
	maxNearbyLimit     = 200
	defaultRadiusKm    = 10.0
)

var postalCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,9}$`)

// NearbyQuery selects restaurants around a center.
type NearbyQuery struct {
	Center     domain.GeoPoint
	RadiusKm   float64
	Limit      int
	Cuisine    string
	PostalCode string
	Query      string
}

func (q NearbyQuery) cacheKey(generation uint64) string {
	return fmt.Sprintf("restaurants:nearby:%d:%.4f:%.4f:%.1f:%d:%s:%s",
		generation, q.Center.Lat, q.Center.Lng, q.RadiusKm, q.Limit,
		strings.ToLower(q.Cuisine), q.PostalCode+"|"+strings.ToLower(q.Query))
}

// RestaurantService answers catalog and recommendation queries by combining
// the persisted catalog with live search results.
type RestaurantService struct {
	catalog  ports.PersistedCatalog
	search   ports.LiveSearch
	geocoder ports.Geocoder
	cache    ports.CacheService
	log      *slog.Logger
	topK     int
	blendCap int

	// generation is part of every nearby cache key; bumping it orphans
	// entries cached before a catalog change.
	generation atomic.Uint64
}

// NewRestaurantService creates a RestaurantService. search, geocoder and cache may be nil.
func NewRestaurantService(catalog ports.PersistedCatalog, search ports.LiveSearch, geocoder ports.Geocoder, cache ports.CacheService, log *slog.Logger) *RestaurantService {
	if log == nil {
		log = slog.Default()
	}
	return &RestaurantService{
		catalog:  catalog,
		search:   search,
		geocoder: geocoder,
		cache:    cache,
		log:      log,
		topK:     DefaultTopK,
		blendCap: 20,
	}
}

// WithRanking overrides the top-picks K and the blend cap.
func (s *RestaurantService) WithRanking(topK, blendCap int) *RestaurantService {
	if topK > 0 {
		s.topK = topK
	}
	if blendCap > 0 {
		s.blendCap = blendCap
	}
	return s
}

// Nearby returns persisted and live restaurants around q.Center, merged by
// identity, filtered and sorted nearest first. A failing live search degrades
// to persisted results only.
func (s *RestaurantService) Nearby(ctx context.Context, q NearbyQuery) ([]domain.Restaurant, error) {
	if !q.Center.Valid() {
		return nil, domain.ErrInvalidCoordinates
	}
	if q.Limit <= 0 {
		q.Limit = defaultNearbyLimit
	}
	if q.Limit > maxNearbyLimit {
		q.Limit = maxNearbyLimit
	}
	if q.RadiusKm <= 0 {
		q.RadiusKm = defaultRadiusKm
	}

	ctx, span := telemetry.Tracer("dineradar/usecases").Start(ctx, "RestaurantService.Nearby")
	defer span.End()
	span.SetAttributes(
		telemetry.AttrCenterLat.Float64(q.Center.Lat),
		telemetry.AttrCenterLng.Float64(q.Center.Lng),
		telemetry.AttrRadiusKm.Float64(q.RadiusKm),
	)

	cacheKey := q.cacheKey(s.generation.Load())
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var list []domain.Restaurant
			if err := json.Unmarshal(data, &list); err == nil {
				metrics.CacheHits.WithLabelValues("nearby").Inc()
				return list, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("nearby").Inc()
	}

	radiusMeters := q.RadiusKm * 1000
	persisted, err := s.catalog.FindNearby(ctx, q.Center, radiusMeters, maxNearbyLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return nil, fmt.Errorf("find nearby: %w", err)
	}

	var live []domain.Restaurant
	degraded := false
	if s.search != nil {
		live, err = s.search.SearchNear(ctx, q.Center, radiusMeters, q.Limit)
		if err != nil {
			degraded = true
			live = nil
			s.log.Warn("live search failed, serving persisted results", "lat", q.Center.Lat, "lng", q.Center.Lng, "error", err)
		}
	}

	merged := Merge(persisted, live)
	filtered := FilterRestaurants(merged, Filter{
		Center:     &q.Center,
		RadiusKm:   q.RadiusKm,
		PostalCode: q.PostalCode,
		Cuisine:    q.Cuisine,
		Query:      q.Query,
	})
	list := SortByDistance(filtered, q.Center)
	if len(list) > q.Limit {
		list = list[:q.Limit]
	}

	span.SetAttributes(
		telemetry.AttrPersisted.Int(len(persisted)),
		telemetry.AttrLive.Int(len(live)),
		telemetry.AttrMerged.Int(len(merged)),
		telemetry.AttrLiveDegraded.Bool(degraded),
	)

	// a degraded answer is not cached so the next request retries live search
	if s.cache != nil && !degraded {
		if data, err := json.Marshal(list); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 120)
		}
	}
	return list, nil
}

// HandleCatalogSynced drops cached nearby answers after new rows were
// stored. Syncs that inserted nothing leave the cache alone.
func (s *RestaurantService) HandleCatalogSynced(_ context.Context, event *domain.CatalogSyncedEvent) error {
	if event == nil || event.Inserted == 0 {
		return nil
	}
	gen := s.generation.Add(1)
	s.log.Info("nearby cache invalidated",
		"generation", gen,
		"lat", event.Center.Lat,
		"lng", event.Center.Lng,
		"inserted", event.Inserted,
	)
	return nil
}

// Catalog lists persisted restaurants, optionally by cuisine.
func (s *RestaurantService) Catalog(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	list, err := s.catalog.GetAll(ctx, limit, cuisine)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return list, nil
}

// GetByID returns a persisted restaurant. Live ids never resolve here since
// live results are not stored under their upstream id.
func (s *RestaurantService) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	if id == "" || domain.IsLive(id) {
		return nil, fmt.Errorf("restaurant %q: %w", id, domain.ErrNotFound)
	}

	cacheKey := "restaurants:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var r domain.Restaurant
			if err := json.Unmarshal(data, &r); err == nil {
				metrics.CacheHits.WithLabelValues("restaurant").Inc()
				return &r, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("restaurant").Inc()
	}

	r, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get restaurant %q: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("restaurant %q: %w", id, domain.ErrNotFound)
	}

	if s.cache != nil {
		if data, err := json.Marshal(r); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}
	return r, nil
}

// TopPicks returns the day's top recommendations around q.Center. k <= 0 uses
// the configured default.
func (s *RestaurantService) TopPicks(ctx context.Context, q NearbyQuery, prefs domain.Preferences, day time.Time, k int) ([]domain.Recommendation, error) {
	if k <= 0 {
		k = s.topK
	}
	recs, err := s.recommend(ctx, q, prefs)
	if err != nil {
		return nil, err
	}
	return DailyRanker{K: k}.Rank(recs, day), nil
}

// Blend returns up to limit recommendations in a shuffled order.
func (s *RestaurantService) Blend(ctx context.Context, q NearbyQuery, prefs domain.Preferences, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = s.blendCap
	}
	recs, err := s.recommend(ctx, q, prefs)
	if err != nil {
		return nil, err
	}
	return ShuffleRanker{Cap: limit}.Rank(recs, time.Time{}), nil
}

func (s *RestaurantService) recommend(ctx context.Context, q NearbyQuery, prefs domain.Preferences) ([]domain.Recommendation, error) {
	if err := validate.Struct(prefs); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPreferences, err)
	}
	list, err := s.Nearby(ctx, q)
	if err != nil {
		return nil, err
	}
	return Recommend(list, prefs), nil
}

// ResolvePostalCode geocodes a postal code to a map center.
func (s *RestaurantService) ResolvePostalCode(ctx context.Context, code string) (*domain.GeoPoint, error) {
	code = strings.TrimSpace(code)
	if !postalCodePattern.MatchString(code) {
		return nil, fmt.Errorf("%q: %w", code, domain.ErrInvalidPostalCode)
	}
	if s.geocoder == nil {
		return nil, fmt.Errorf("geocoder not configured: %w", domain.ErrNotFound)
	}

	ctx, span := telemetry.Tracer("dineradar/usecases").Start(ctx, "RestaurantService.ResolvePostalCode")
	defer span.End()
	span.SetAttributes(telemetry.AttrPostalCode.String(code))

	cacheKey := "geocode:" + strings.ToUpper(code)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var pt domain.GeoPoint
			if err := json.Unmarshal(data, &pt); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return &pt, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	pt, err := s.geocoder.Resolve(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode failed")
		return nil, fmt.Errorf("geocode %q: %w", code, err)
	}
	if pt == nil {
		span.SetAttributes(attribute.Bool("dineradar.geocode.found", false))
		return nil, fmt.Errorf("postal code %q: %w", code, domain.ErrNotFound)
	}

	if s.cache != nil {
		if data, err := json.Marshal(pt); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 86400)
		}
	}
	return pt, nil
}
