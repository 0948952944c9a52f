package usecases_test

import (
	"reflect"
	"testing"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/usecases"
	"github.com/samirrijal/dineradar/internal/pkg/geospatial"
)

func TestFilterRestaurants(t *testing.T) {
	center := domain.GeoPoint{Lat: 40.7128, Lng: -74.0060}

	near := restaurant("near", "Café Olé", 40.7130, -74.0062)
	near.PostalCode = "10001"
	near.CuisineType = []string{"Spanish"}
	addr := restaurant("addr", "Deli", 40.7140, -74.0050)
	addr.Address = "9 Broad St, New York, NY 10001"
	far := restaurant("far", "Far Away", 41.5, -74.0)
	far.PostalCode = "10001"
	other := restaurant("other", "Other Zip", 40.7129, -74.0061)
	other.PostalCode = "10002"

	list := []domain.Restaurant{near, addr, far, other}

	tests := []struct {
		name string
		f    usecases.Filter
		want []string
	}{
		{"no filter", usecases.Filter{}, []string{"near", "addr", "far", "other"}},
		{"radius", usecases.Filter{Center: &center, RadiusKm: 5}, []string{"near", "addr", "other"}},
		{"postal", usecases.Filter{PostalCode: "10001"}, []string{"near", "addr", "far"}},
		{"radius and postal", usecases.Filter{Center: &center, RadiusKm: 5, PostalCode: "10001"}, []string{"near", "addr"}},
		{"cuisine", usecases.Filter{Cuisine: "spanish"}, []string{"near"}},
		{"accent-insensitive query", usecases.Filter{Query: "cafe ole"}, []string{"near"}},
		{"accented query", usecases.Filter{Query: "CAFÉ"}, []string{"near"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecases.FilterRestaurants(list, tt.f)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids(got))
			}
		})
	}
}

func TestSortByDistance(t *testing.T) {
	center := domain.GeoPoint{Lat: 0, Lng: 0}
	list := []domain.Restaurant{
		restaurant("far", "Far", 0, 2),
		restaurant("tie1", "Tie 1", 0, 1),
		restaurant("near", "Near", 0, 0.1),
		restaurant("tie2", "Tie 2", 1, 0),
	}
	got := usecases.SortByDistance(list, center)

	want := []string{"near", "tie1", "tie2", "far"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Errorf("expected %v, got %v", want, ids(got))
	}
	if got[0].DistanceKm == nil {
		t.Fatal("expected distance to be populated")
	}
	if list[0].DistanceKm != nil {
		t.Error("input must not be modified")
	}
}

func TestWithOverrides(t *testing.T) {
	base := []domain.Restaurant{restaurant("a", "A", 1, 1)}
	overrides := []domain.Restaurant{restaurant("a", "A", 1, 1), restaurant("b", "B", 2, 2)}

	got := usecases.WithOverrides(base, overrides)
	if !reflect.DeepEqual(ids(got), []string{"a", "b"}) {
		t.Errorf("unexpected list %v", ids(got))
	}
}

func TestInBounds(t *testing.T) {
	b := geospatial.Bound(40, -75, 41, -73)
	list := []domain.Restaurant{restaurant("in", "In", 40.5, -74), restaurant("out", "Out", 42, -74)}
	got := usecases.InBounds(list, b)
	if !reflect.DeepEqual(ids(got), []string{"in"}) {
		t.Errorf("unexpected visible %v", ids(got))
	}
}
