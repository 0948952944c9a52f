package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/dineradar/internal/adapters/http"
	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/usecases"
)

// ---- Mocks ----

type mockCatalog struct {
	getAllFn     func(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error)
	getByIDFn    func(ctx context.Context, id string) (*domain.Restaurant, error)
	findNearbyFn func(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error)
}

func (m *mockCatalog) GetAll(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error) {
	if m.getAllFn != nil {
		return m.getAllFn(ctx, limit, cuisine)
	}
	return nil, nil
}
func (m *mockCatalog) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockCatalog) FindNearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, center, radiusMeters, limit)
	}
	return nil, nil
}
func (m *mockCatalog) UpsertBatch(ctx context.Context, rs []domain.Restaurant) (int, error) {
	return len(rs), nil
}

type mockSearch struct {
	searchFn func(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error)
}

func (m *mockSearch) SearchNear(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, center, radiusMeters, limit)
	}
	return nil, nil
}

type mockGeocoder struct {
	resolveFn func(ctx context.Context, code string) (*domain.GeoPoint, error)
}

func (m *mockGeocoder) Resolve(ctx context.Context, code string) (*domain.GeoPoint, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, code)
	}
	return nil, nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

// ---- Test helpers ----

func restaurant(id, name string, lat, lng float64) domain.Restaurant {
	return domain.Restaurant{
		ID: id, Name: name,
		Coordinates: domain.GeoPoint{Lat: lat, Lng: lng},
		Provenance:  domain.ProvenancePersisted,
	}
}

// midtown returns five persisted restaurants around Herald Square.
func midtown() []domain.Restaurant {
	return []domain.Restaurant{
		restaurant("p1", "Corner Cafe", 40.7506, -73.9972),
		restaurant("p2", "Noodle Bar", 40.7510, -73.9960),
		restaurant("p3", "Taco Stand", 40.7520, -73.9950),
		restaurant("p4", "Pizza Place", 40.7530, -73.9940),
		restaurant("p5", "Dumpling House", 40.7540, -73.9930),
	}
}

type testDeps struct {
	catalog  *mockCatalog
	search   *mockSearch
	geocoder *mockGeocoder
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*testDeps)) *handler.Dependencies {
	td := &testDeps{
		catalog: &mockCatalog{findNearbyFn: func(context.Context, domain.GeoPoint, float64, int) ([]domain.Restaurant, error) {
			return midtown(), nil
		}},
		search:   &mockSearch{},
		geocoder: &mockGeocoder{},
	}
	for _, o := range opts {
		o(td)
	}
	return &handler.Dependencies{
		Restaurants: usecases.NewRestaurantService(td.catalog, td.search, td.geocoder, nil, nil),
		DB:          mockPinger{},
	}
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte, map[string]string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, body, headers
}

type restaurantPage struct {
	Data       []domain.Restaurant `json:"data"`
	Pagination handler.Pagination  `json:"pagination"`
}

// ---- Restaurant handler tests ----

func TestListRestaurants_MergesLiveResults(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.search.searchFn = func(context.Context, domain.GeoPoint, float64, int) ([]domain.Restaurant, error) {
			dup := restaurant("live-abc", "corner cafe", 40.75061, -73.99719)
			dup.Provenance = domain.ProvenanceLive
			extra := restaurant("live-def", "Ramen Spot", 40.7507, -73.9970)
			extra.Provenance = domain.ProvenanceLive
			return []domain.Restaurant{dup, extra}, nil
		}
	}))

	status, body, _ := get(t, app, "/v1/restaurants?lat=40.7506&lng=-73.9972&radius_km=2")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var page restaurantPage
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatal(err)
	}
	if page.Pagination.Total != 6 {
		t.Errorf("expected 6 restaurants after dedup, got %d", page.Pagination.Total)
	}
	// the live duplicate takes over the persisted record's identity fields
	if page.Data[0].ID != "live-abc" || page.Data[0].Provenance != domain.ProvenanceLive {
		t.Errorf("expected merged corner cafe first, got %s (%s)", page.Data[0].ID, page.Data[0].Provenance)
	}
	if page.Data[0].DistanceKm == nil {
		t.Error("expected distance_km to be populated")
	}
}

func TestListRestaurants_LiveFailureDegrades(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.search.searchFn = func(context.Context, domain.GeoPoint, float64, int) ([]domain.Restaurant, error) {
			return nil, errors.New("upstream down")
		}
	}))

	status, body, _ := get(t, app, "/v1/restaurants?lat=40.7506&lng=-73.9972")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var page restaurantPage
	_ = json.Unmarshal(body, &page)
	if page.Pagination.Total != 5 {
		t.Errorf("expected persisted results only, got %d", page.Pagination.Total)
	}
}

func TestListRestaurants_Pagination(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, headers := get(t, app, "/v1/restaurants?lat=40.7506&lng=-73.9972&offset=2&limit=2")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var page restaurantPage
	_ = json.Unmarshal(body, &page)
	if page.Pagination.Total != 5 || page.Pagination.Offset != 2 || len(page.Data) != 2 {
		t.Errorf("unexpected page %+v with %d rows", page.Pagination, len(page.Data))
	}
	if page.Data[0].ID != "p3" {
		t.Errorf("expected p3 at offset 2, got %s", page.Data[0].ID)
	}

	link := headers["Link"]
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, "lat=40.7506") {
		t.Errorf("expected next link carrying the query, got %q", link)
	}
}

func TestListRestaurants_OffsetPastEnd(t *testing.T) {
	app := setupApp(makeDeps())
	_, body, _ := get(t, app, "/v1/restaurants?lat=40.7506&lng=-73.9972&offset=50")
	var page restaurantPage
	_ = json.Unmarshal(body, &page)
	if page.Data == nil || len(page.Data) != 0 {
		t.Errorf("expected empty data array, got %s", body)
	}
}

func TestListRestaurants_BadParams(t *testing.T) {
	app := setupApp(makeDeps())

	cases := map[string]string{
		"missing":      "/v1/restaurants",
		"not a number": "/v1/restaurants?lat=north&lng=1",
		"out of range": "/v1/restaurants?lat=91&lng=0",
		"radius":       "/v1/restaurants?lat=40&lng=-73&radius_km=500",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			status, body, _ := get(t, app, target)
			if status != 400 {
				t.Fatalf("expected 400, got %d", status)
			}
			var apiErr handler.APIError
			_ = json.Unmarshal(body, &apiErr)
			if apiErr.Code != "bad_request" {
				t.Errorf("expected bad_request, got %q", apiErr.Code)
			}
		})
	}
}

func TestListRestaurants_DeprecatedAlias(t *testing.T) {
	app := setupApp(makeDeps())
	status, _, headers := get(t, app, "/v1/restaurants/nearby?lat=40.7506&lng=-73.9972")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if headers["Deprecation"] != "true" {
		t.Error("expected Deprecation header")
	}
	if !strings.Contains(headers["Link"], "successor-version") {
		t.Errorf("expected successor link, got %q", headers["Link"])
	}
}

func TestGetRestaurant(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.catalog.getByIDFn = func(_ context.Context, id string) (*domain.Restaurant, error) {
			if id == "p1" {
				r := midtown()[0]
				return &r, nil
			}
			return nil, nil
		}
	}))

	status, body, _ := get(t, app, "/v1/restaurants/p1")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var r domain.Restaurant
	_ = json.Unmarshal(body, &r)
	if r.Name != "Corner Cafe" {
		t.Errorf("unexpected restaurant %+v", r)
	}

	for _, id := range []string{"missing", "live-abc"} {
		status, body, _ := get(t, app, "/v1/restaurants/"+id)
		if status != 404 {
			t.Errorf("%s: expected 404, got %d", id, status)
		}
		var apiErr handler.APIError
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Code != "not_found" {
			t.Errorf("%s: expected not_found, got %q", id, apiErr.Code)
		}
	}
}

func TestGetRestaurant_ETag(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.catalog.getByIDFn = func(context.Context, string) (*domain.Restaurant, error) {
			r := midtown()[0]
			return &r, nil
		}
	}))

	_, _, headers := get(t, app, "/v1/restaurants/p1")
	etag := headers["Etag"]
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/restaurants/p1", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

// ---- Recommendation handler tests ----

type recommendations struct {
	Date string                  `json:"date"`
	Data []domain.Recommendation `json:"data"`
}

func recIDs(recs []domain.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Restaurant.ID
	}
	return out
}

func TestTopPicks_StableForADay(t *testing.T) {
	app := setupApp(makeDeps())
	target := "/v1/recommendations/top?lat=40.7506&lng=-73.9972&date=2024-03-15&k=3&favorites=p4"

	status, body, headers := get(t, app, target)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if headers["Cache-Control"] != "public, max-age=300" {
		t.Errorf("a fixed date keeps the full max-age, got %q", headers["Cache-Control"])
	}
	var first recommendations
	_ = json.Unmarshal(body, &first)
	if first.Date != "2024-03-15" {
		t.Errorf("expected date echoed, got %q", first.Date)
	}
	if len(first.Data) != 3 {
		t.Fatalf("expected 3 picks, got %d", len(first.Data))
	}
	for _, r := range first.Data {
		if r.AdjustedScore == nil {
			t.Errorf("expected adjusted score on %s", r.Restaurant.ID)
		}
	}

	_, body, _ = get(t, app, target)
	var second recommendations
	_ = json.Unmarshal(body, &second)
	if !reflect.DeepEqual(recIDs(first.Data), recIDs(second.Data)) {
		t.Errorf("same day should rank the same: %v vs %v", recIDs(first.Data), recIDs(second.Data))
	}
}

func TestTopPicks_BadParams(t *testing.T) {
	app := setupApp(makeDeps())
	for _, target := range []string{
		"/v1/recommendations/top?lat=40.75&lng=-73.99&date=15-03-2024",
		"/v1/recommendations/top?lat=40.75&lng=-73.99&max_price=9",
		"/v1/recommendations/top?lat=40.75&lng=-73.99&max_price=cheap",
		"/v1/recommendations/top?lat=40.75&lng=-73.99&k=500",
	} {
		if status, _, _ := get(t, app, target); status != 400 {
			t.Errorf("%s: expected 400, got %d", target, status)
		}
	}
}

func TestBlend(t *testing.T) {
	app := setupApp(makeDeps())

	status, body, headers := get(t, app, "/v1/recommendations/blend?lat=40.7506&lng=-73.9972&cap=2")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res recommendations
	_ = json.Unmarshal(body, &res)
	if len(res.Data) != 2 {
		t.Errorf("expected cap of 2, got %d", len(res.Data))
	}
	if headers["Cache-Control"] != "no-store" {
		t.Errorf("expected no-store, got %q", headers["Cache-Control"])
	}
	if headers["Etag"] != "" {
		t.Error("no-store responses should not carry an ETag")
	}
}

// ---- Geocode handler tests ----

func TestGeocode(t *testing.T) {
	app := setupApp(makeDeps(func(d *testDeps) {
		d.geocoder.resolveFn = func(_ context.Context, code string) (*domain.GeoPoint, error) {
			if code == "10001" {
				return &domain.GeoPoint{Lat: 40.7506, Lng: -73.9972}, nil
			}
			return nil, nil
		}
	}))

	status, body, _ := get(t, app, "/v1/geocode/10001")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		PostalCode string          `json:"postal_code"`
		Center     domain.GeoPoint `json:"center"`
	}
	_ = json.Unmarshal(body, &res)
	if res.PostalCode != "10001" || res.Center.Lat != 40.7506 {
		t.Errorf("unexpected response %s", body)
	}

	if status, _, _ := get(t, app, "/v1/geocode/99999"); status != 404 {
		t.Errorf("expected 404 for unknown code, got %d", status)
	}
	if status, _, _ := get(t, app, "/v1/geocode/%21%21"); status != 400 {
		t.Errorf("expected 400 for malformed code, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Restaurants(t *testing.T) {
	app := setupApp(makeDeps())

	query := `{"query":"{ restaurants(lat: 40.7506, lng: -73.9972, limit: 2) { id name coordinates { lat lng } provenance } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Restaurants []struct {
				ID          string          `json:"id"`
				Name        string          `json:"name"`
				Coordinates domain.GeoPoint `json:"coordinates"`
				Provenance  string          `json:"provenance"`
			} `json:"restaurants"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Data.Restaurants) != 2 {
		t.Fatalf("expected 2 restaurants, got %d", len(result.Data.Restaurants))
	}
	first := result.Data.Restaurants[0]
	if first.ID != "p1" || first.Coordinates.Lat != 40.7506 || first.Provenance != "persisted" {
		t.Errorf("unexpected first restaurant %+v", first)
	}
}

func TestGraphQL_RestaurantsInBounds(t *testing.T) {
	app := setupApp(makeDeps())

	query := `{"query":"{ restaurants(lat: 40.7506, lng: -73.9972, min_lat: 40.7515, min_lng: -74.0, max_lat: 40.76, max_lng: -73.99) { id } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)

	var result struct {
		Data struct {
			Restaurants []struct {
				ID string `json:"id"`
			} `json:"restaurants"`
		} `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data.Restaurants) != 3 {
		t.Errorf("expected p3..p5 inside the box, got %+v", result.Data.Restaurants)
	}
}

func TestGraphQL_BadBody(t *testing.T) {
	app := setupApp(makeDeps())
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Health ----

func TestReady(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)
	if status, _, _ := get(t, app, "/v1/ready"); status != 200 {
		t.Errorf("expected 200 with a healthy db, got %d", status)
	}

	deps.DB = mockPinger{err: errors.New("connection refused")}
	app = setupApp(deps)
	status, body, _ := get(t, app, "/v1/ready")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	var res struct {
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(body, &res)
	if !strings.HasPrefix(res.Checks["catalog"], "error") {
		t.Errorf("expected catalog error, got %v", res.Checks)
	}
	if res.Checks["cache"] != "not configured" {
		t.Errorf("expected cache not configured, got %q", res.Checks["cache"])
	}
}

type stubBreaker string

func (b stubBreaker) BreakerState() string { return string(b) }

func TestReady_OpenBreakerDegrades(t *testing.T) {
	deps := makeDeps()
	deps.Breakers = map[string]handler.BreakerReporter{
		"places":   stubBreaker("open"),
		"geocoder": stubBreaker("closed"),
	}
	app := setupApp(deps)
	status, body, _ := get(t, app, "/v1/ready")
	if status != 200 {
		t.Fatalf("an open breaker must not fail readiness, got %d", status)
	}
	var res struct {
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(body, &res)
	if res.Checks["places"] != "open (degraded)" || res.Checks["geocoder"] != "closed" {
		t.Errorf("unexpected breaker checks %v", res.Checks)
	}
}

type driverPinger struct{ mockPinger }

func (driverPinger) Driver() string { return "sqlite" }

func TestHealth(t *testing.T) {
	deps := makeDeps()
	deps.DB = driverPinger{}
	app := setupApp(deps)
	status, body, headers := get(t, app, "/v1/health")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if headers["X-Api-Version"] != "1.0.0" {
		t.Errorf("expected API version header, got %q", headers["X-Api-Version"])
	}
	var res struct {
		Catalog string `json:"catalog"`
	}
	_ = json.Unmarshal(body, &res)
	if res.Catalog != "sqlite" {
		t.Errorf("expected catalog driver sqlite, got %q", res.Catalog)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps())
	if status, _, _ := get(t, app, "/ws/map"); status != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", status)
	}
}
