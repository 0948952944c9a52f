package geospatial

import (
	"math"
	"testing"
)

func TestDistanceKm_KnownPair(t *testing.T) {
	// Bilbao (Abando) to Donostia, roughly 80 km apart.
	d := DistanceKm(43.2630, -2.9350, 43.3183, -1.9812)
	if d < 76 || d > 80 {
		t.Errorf("expected ~77.5 km, got %.2f", d)
	}
}

func TestDistanceKm_SamePoint(t *testing.T) {
	if d := DistanceKm(37.1, -113.5, 37.1, -113.5); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := DistanceKm(37.1, -113.5, 37.2, -113.4)
	b := DistanceKm(37.2, -113.4, 37.1, -113.5)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("expected symmetric distances, got %f and %f", a, b)
	}
}

func TestDistanceKm_OneDegreeLatitude(t *testing.T) {
	// 2*pi*6371/360
	want := 111.19492664455873
	if d := DistanceKm(0, 0, 1, 0); math.Abs(d-want) > 1e-6 {
		t.Errorf("expected %f, got %f", want, d)
	}
}

func TestHaversine_Meters(t *testing.T) {
	km := DistanceKm(43.263, -2.935, 43.264, -2.934)
	m := Haversine(43.263, -2.935, 43.264, -2.934)
	if math.Abs(km*1000-m) > 1e-6 {
		t.Errorf("expected %f m, got %f", km*1000, m)
	}
}

func TestContains(t *testing.T) {
	b := Bound(37.0, -114.0, 38.0, -113.0)
	if !Contains(b, 37.5, -113.5) {
		t.Error("expected point inside bound")
	}
	if Contains(b, 36.9, -113.5) {
		t.Error("expected point outside bound")
	}
}

func TestNear(t *testing.T) {
	if !Near(37.1, -113.5, 37.10005, -113.50005, 0.0001) {
		t.Error("expected points within tolerance")
	}
	if Near(37.1, -113.5, 37.1002, -113.5, 0.0001) {
		t.Error("expected points outside tolerance")
	}
}
