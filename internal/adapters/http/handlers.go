package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/usecases"
)

const (
	maxRadiusKm   = 50.0
	maxPageLimit  = 200
	maxQueryLen   = 200
	nearbyFetchSz = 200
)

// parseNearby reads the shared location query parameters.
func parseNearby(c *fiber.Ctx) (usecases.NearbyQuery, error) {
	var q usecases.NearbyQuery

	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		return q, errBadRequest(c, "lat and lng are required")
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		return q, errBadRequest(c, "lat and lng must be numbers")
	}
	q.Center = domain.GeoPoint{Lat: lat, Lng: lng}
	if !q.Center.Valid() {
		return q, errBadRequest(c, "lat must be within [-90, 90] and lng within [-180, 180]")
	}

	q.RadiusKm = c.QueryFloat("radius_km", 10)
	if q.RadiusKm <= 0 || q.RadiusKm > maxRadiusKm {
		return q, errBadRequest(c, "radius_km must be between 0 and 50")
	}

	q.Cuisine = strings.TrimSpace(c.Query("cuisine"))
	q.PostalCode = strings.TrimSpace(c.Query("postal_code"))
	q.Query = c.Query("q")
	if len(q.Query) > maxQueryLen {
		return q, errBadRequest(c, "query too long (max 200 characters)")
	}
	return q, nil
}

// parsePreferences reads diner preferences from comma-separated query lists.
func parsePreferences(c *fiber.Ctx) (domain.Preferences, error) {
	prefs := domain.Preferences{
		FavoriteIDs: splitList(c.Query("favorites")),
		FriendIDs:   splitList(c.Query("friends")),
		Cuisines:    splitList(c.Query("cuisines")),
		PreferQuiet: c.QueryBool("prefer_quiet", false),
	}
	if v := c.Query("max_price"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return prefs, errBadRequest(c, "max_price must be an integer")
		}
		prefs.MaxPrice = &p
	}
	if v := c.Query("min_rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return prefs, errBadRequest(c, "min_rating must be a number")
		}
		prefs.MinRating = &r
	}
	return prefs, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ListRestaurantsHandler returns merged persisted and live restaurants around
// a point, nearest first, with offset/limit pagination.
func ListRestaurantsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseNearby(c)
		if err != nil {
			return err
		}
		q.Limit = nearbyFetchSz

		list, err := deps.Restaurants.Nearby(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err)
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > maxPageLimit {
			limit = 50
		}

		total := len(list)
		if offset >= total {
			list = []domain.Restaurant{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			list = list[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: list, Pagination: pg})
	}
}

// GetRestaurantHandler returns a persisted restaurant by id.
func GetRestaurantHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "restaurant id is required")
		}
		r, err := deps.Restaurants.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(r)
	}
}

// TopPicksHandler returns the day's top recommendations. The ranking is stable
// for a calendar day, selected with ?date=YYYY-MM-DD (default today).
func TopPicksHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseNearby(c)
		if err != nil {
			return err
		}
		prefs, err := parsePreferences(c)
		if err != nil {
			return err
		}

		now := time.Now()
		day := now
		maxAge := topPicksMaxAge(now)
		if v := c.Query("date"); v != "" {
			day, err = time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				return errBadRequest(c, "date must be YYYY-MM-DD")
			}
			maxAge = topPicksMaxAgeSeconds
		}
		k := c.QueryInt("k", 0)
		if k < 0 || k > 50 {
			return errBadRequest(c, "k must be between 1 and 50")
		}

		recs, err := deps.Restaurants.TopPicks(c.UserContext(), q, prefs, day, k)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
		return c.JSON(fiber.Map{"date": day.Format("2006-01-02"), "data": recs})
	}
}

const topPicksMaxAgeSeconds = 300

// topPicksMaxAge caps caching of today's picks at the next local midnight,
// when the ranking changes.
func topPicksMaxAge(now time.Time) int {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	left := int(midnight.Sub(now) / time.Second)
	if left < topPicksMaxAgeSeconds {
		return left
	}
	return topPicksMaxAgeSeconds
}

// BlendHandler returns recommendations in a fresh random order on every call.
func BlendHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseNearby(c)
		if err != nil {
			return err
		}
		prefs, err := parsePreferences(c)
		if err != nil {
			return err
		}
		capN := c.QueryInt("cap", 0)
		if capN < 0 || capN > maxPageLimit {
			return errBadRequest(c, "cap must be between 1 and 200")
		}

		recs, err := deps.Restaurants.Blend(c.UserContext(), q, prefs, capN)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{"data": recs})
	}
}

// GeocodeHandler resolves a postal code to a map center.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("postal_code")
		pt, err := deps.Restaurants.ResolvePostalCode(c.UserContext(), code)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(fiber.Map{"postal_code": strings.ToUpper(strings.TrimSpace(code)), "center": pt})
	}
}
