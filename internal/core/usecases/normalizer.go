package usecases

import (
	"log/slog"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/pkg/metrics"
)

var validate = validator.New()

// place types that say nothing about cuisine
var genericPlaceTypes = map[string]bool{
	"restaurant":        true,
	"food":              true,
	"point_of_interest": true,
	"establishment":     true,
	"store":             true,
	"meal_takeaway":     true,
	"meal_delivery":     true,
}

// Normalizer converts raw catalog rows and raw place results into canonical
// restaurants. Malformed records are logged and dropped, never returned as errors.
type Normalizer struct {
	log *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil logger uses slog.Default().
func NewNormalizer(log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{log: log}
}

// FromCatalog normalizes one persisted catalog record.
func (n *Normalizer) FromCatalog(rec ports.CatalogRecord) (domain.Restaurant, bool) {
	const source = "persisted"

	name := strings.TrimSpace(rec.Name)
	if rec.ID == "" {
		return n.reject(source, "missing_id", rec.ID, name)
	}
	pt, reason := point(rec.Lat, rec.Lng)
	if name == "" {
		return n.reject(source, "missing_name", rec.ID, name)
	}
	if reason != "" {
		return n.reject(source, reason, rec.ID, name)
	}

	r := domain.Restaurant{
		ID:          rec.ID,
		Name:        name,
		Address:     strings.TrimSpace(rec.Address),
		PostalCode:  strings.TrimSpace(rec.PostalCode),
		Coordinates: pt,
		CuisineType: cleanTags(rec.Cuisines),
		PriceRange:  n.priceRange(rec.ID, rec.PriceRange),
		Rating:      n.rating(rec.ID, rec.Rating),
		Attributes:  n.attributes(rec.ID, rec.Attributes),
		Provenance:  domain.ProvenancePersisted,
	}
	return r, true
}

// FromPlace normalizes one live place-search result. The id is the upstream
// place id behind domain.LiveIDPrefix.
func (n *Normalizer) FromPlace(p ports.PlaceResult) (domain.Restaurant, bool) {
	const source = "live"

	name := strings.TrimSpace(p.Name)
	if p.PlaceID == "" {
		return n.reject(source, "missing_id", p.PlaceID, name)
	}
	pt, reason := point(p.Lat, p.Lng)
	if name == "" {
		return n.reject(source, "missing_name", p.PlaceID, name)
	}
	if reason != "" {
		return n.reject(source, reason, p.PlaceID, name)
	}

	id := p.PlaceID
	if !domain.IsLive(id) {
		id = domain.LiveIDPrefix + id
	}

	var cuisines []string
	for _, t := range p.Types {
		t = strings.ToLower(strings.TrimSpace(t))
		if genericPlaceTypes[t] {
			continue
		}
		cuisines = append(cuisines, strings.TrimSuffix(t, "_restaurant"))
	}

	var price *int
	if p.PriceLevel != nil {
		level := *p.PriceLevel
		if level < 1 {
			level = 1
		}
		price = n.priceRange(id, &level)
	}

	return domain.Restaurant{
		ID:          id,
		Name:        name,
		Address:     strings.TrimSpace(p.Vicinity),
		PostalCode:  strings.TrimSpace(p.PostalCode),
		Coordinates: pt,
		CuisineType: cleanTags(cuisines),
		PriceRange:  price,
		Rating:      n.rating(id, p.Rating),
		Provenance:  domain.ProvenanceLive,
	}, true
}

// Catalog normalizes a batch of catalog records, skipping rejects.
func (n *Normalizer) Catalog(recs []ports.CatalogRecord) []domain.Restaurant {
	out := make([]domain.Restaurant, 0, len(recs))
	for _, rec := range recs {
		if r, ok := n.FromCatalog(rec); ok {
			out = append(out, r)
		}
	}
	return out
}

// Places normalizes a batch of place results, skipping rejects.
func (n *Normalizer) Places(results []ports.PlaceResult) []domain.Restaurant {
	out := make([]domain.Restaurant, 0, len(results))
	for _, p := range results {
		if r, ok := n.FromPlace(p); ok {
			out = append(out, r)
		}
	}
	return out
}

func (n *Normalizer) reject(source, reason, id, name string) (domain.Restaurant, bool) {
	metrics.NormalizerRejected.WithLabelValues(source, reason).Inc()
	n.log.Warn("restaurant record rejected",
		"source", source,
		"reason", reason,
		"id", id,
		"name", name,
	)
	return domain.Restaurant{}, false
}

func (n *Normalizer) priceRange(id string, p *int) *int {
	if p == nil {
		return nil
	}
	if *p < 1 || *p > 4 {
		n.log.Warn("dropping invalid price range", "id", id, "price_range", *p)
		return nil
	}
	v := *p
	return &v
}

func (n *Normalizer) rating(id string, r *float64) *float64 {
	if r == nil {
		return nil
	}
	if math.IsNaN(*r) || *r < 0 || *r > 5 {
		n.log.Warn("dropping invalid rating", "id", id, "rating", *r)
		return nil
	}
	v := *r
	return &v
}

func (n *Normalizer) attributes(id string, a *domain.Attributes) *domain.Attributes {
	if a == nil {
		return nil
	}
	if err := validate.Struct(a); err != nil {
		n.log.Warn("dropping invalid enrichment", "id", id, "error", err)
		return nil
	}
	return a.Clone()
}

func point(lat, lng *float64) (domain.GeoPoint, string) {
	if lat == nil || lng == nil {
		return domain.GeoPoint{}, "missing_coordinates"
	}
	pt := domain.GeoPoint{Lat: *lat, Lng: *lng}
	if !pt.Valid() {
		return domain.GeoPoint{}, "invalid_coordinates"
	}
	return pt, ""
}

// cleanTags trims, drops blanks and duplicate tags, keeping first-seen order.
func cleanTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
