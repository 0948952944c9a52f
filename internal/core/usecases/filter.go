package usecases

import (
	"sort"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/pkg/geospatial"
)

// Filter narrows a restaurant list. Zero values disable each criterion.
type Filter struct {
	Center     *domain.GeoPoint
	RadiusKm   float64
	PostalCode string
	Cuisine    string
	Query      string
}

// distanceKm is the great-circle distance between two points.
func distanceKm(a, b domain.GeoPoint) float64 {
	return geospatial.DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// FilterRestaurants returns the restaurants matching f. The input is not modified.
func FilterRestaurants(list []domain.Restaurant, f Filter) []domain.Restaurant {
	query := foldText(strings.TrimSpace(f.Query))
	postal := strings.TrimSpace(f.PostalCode)

	out := make([]domain.Restaurant, 0, len(list))
	for _, r := range list {
		if f.Center != nil && f.RadiusKm > 0 && distanceKm(*f.Center, r.Coordinates) > f.RadiusKm {
			continue
		}
		if postal != "" && !matchesPostal(r, postal) {
			continue
		}
		if f.Cuisine != "" && !hasCuisine(r, f.Cuisine) {
			continue
		}
		if query != "" && !strings.Contains(foldText(r.Name), query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesPostal(r domain.Restaurant, postal string) bool {
	if r.PostalCode != "" {
		return r.PostalCode == postal
	}
	return strings.Contains(r.Address, postal)
}

func hasCuisine(r domain.Restaurant, cuisine string) bool {
	for _, c := range r.CuisineType {
		if strings.EqualFold(c, cuisine) {
			return true
		}
	}
	return false
}

// SortByDistance returns a copy ordered by distance from center, nearest first,
// with DistanceKm populated. Ties keep input order.
func SortByDistance(list []domain.Restaurant, center domain.GeoPoint) []domain.Restaurant {
	out := make([]domain.Restaurant, len(list))
	for i, r := range list {
		d := distanceKm(center, r.Coordinates)
		out[i] = r
		out[i].DistanceKm = &d
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceKm < *out[j].DistanceKm
	})
	return out
}

// WithOverrides appends the override items whose id is not already in base.
// Filtering itself never sees overrides; they are merged at render time.
func WithOverrides(base, overrides []domain.Restaurant) []domain.Restaurant {
	if len(overrides) == 0 {
		return base
	}
	ids := make(map[string]bool, len(base))
	for _, r := range base {
		ids[r.ID] = true
	}
	out := append(make([]domain.Restaurant, 0, len(base)+len(overrides)), base...)
	for _, r := range overrides {
		if !ids[r.ID] {
			ids[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

// InBounds returns the restaurants plotted inside b.
func InBounds(list []domain.Restaurant, b orb.Bound) []domain.Restaurant {
	out := make([]domain.Restaurant, 0, len(list))
	for _, r := range list {
		if geospatial.Contains(b, r.Coordinates.Lat, r.Coordinates.Lng) {
			out = append(out, r)
		}
	}
	return out
}

// foldText lower-cases s and strips diacritics so "Café" matches "cafe".
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}
