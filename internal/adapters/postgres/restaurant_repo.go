package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/core/usecases"
)

const restaurantColumns = `
	id, name, COALESCE(address, ''), COALESCE(postal_code, ''),
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lng,
	COALESCE(cuisines, '{}'), price_range, rating, attributes`

// RestaurantRepo implements ports.PersistedCatalog with pgx and PostGIS.
// Rows pass through the normalizer on the way out, so a malformed row is
// logged and skipped instead of failing the query.
type RestaurantRepo struct {
	db   *DB
	norm *usecases.Normalizer
}

var _ ports.PersistedCatalog = (*RestaurantRepo)(nil)

// NewRestaurantRepo creates a new RestaurantRepo.
func NewRestaurantRepo(db *DB, log *slog.Logger) *RestaurantRepo {
	return &RestaurantRepo{db: db, norm: usecases.NewNormalizer(log)}
}

// GetAll returns up to limit restaurants ordered by name; limit <= 0 returns
// every row. An empty cuisine means no filter.
func (r *RestaurantRepo) GetAll(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+restaurantColumns+`
		FROM restaurants
		WHERE $1 = '' OR EXISTS (SELECT 1 FROM unnest(cuisines) c WHERE lower(c) = lower($1))
		ORDER BY name
		LIMIT NULLIF($2::int, 0)
	`, cuisine, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// GetByID returns nil, nil when the id is unknown.
func (r *RestaurantRepo) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	list, err := r.collect(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// FindNearby returns restaurants within radiusMeters using PostGIS ST_DWithin.
func (r *RestaurantRepo) FindNearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+restaurantColumns+`
		FROM restaurants
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)
		LIMIT $4
	`, center.Lng, center.Lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// UpsertBatch inserts many restaurants using pgx.Batch. Rows are keyed by
// identity key; an existing row keeps its id and enrichment and only has its
// address refreshed. It returns how many rows were inserted.
func (r *RestaurantRepo) UpsertBatch(ctx context.Context, restaurants []domain.Restaurant) (int, error) {
	if len(restaurants) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rs := range restaurants {
		var attrs []byte
		if rs.Attributes != nil {
			b, err := json.Marshal(rs.Attributes)
			if err != nil {
				return 0, fmt.Errorf("encode attributes for %s: %w", rs.ID, err)
			}
			attrs = b
		}
		batch.Queue(`
			INSERT INTO restaurants (id, identity_key, name, address, postal_code, location, cuisines, price_range, rating, attributes)
			VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8, $9, $10, $11)
			ON CONFLICT (identity_key) DO UPDATE
			SET address = COALESCE(NULLIF(EXCLUDED.address, ''), restaurants.address),
			    postal_code = COALESCE(NULLIF(restaurants.postal_code, ''), EXCLUDED.postal_code),
			    updated_at = now()
			RETURNING (xmax = 0) AS inserted
		`, rs.ID, domain.IdentityKey(rs), rs.Name, rs.Address, rs.PostalCode,
			rs.Coordinates.Lng, rs.Coordinates.Lat, rs.CuisineType, rs.PriceRange, rs.Rating, attrs)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range restaurants {
		var isNew bool
		if err := br.QueryRow().Scan(&isNew); err != nil {
			return inserted, fmt.Errorf("batch exec: %w", err)
		}
		if isNew {
			inserted++
		}
	}
	return inserted, nil
}

func (r *RestaurantRepo) collect(rows pgx.Rows) ([]domain.Restaurant, error) {
	defer rows.Close()

	var recs []ports.CatalogRecord
	for rows.Next() {
		var (
			rec   ports.CatalogRecord
			price *int16
			attrs []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Address, &rec.PostalCode,
			&rec.Lat, &rec.Lng,
			&rec.Cuisines, &price, &rec.Rating, &attrs,
		); err != nil {
			return nil, err
		}
		if price != nil {
			p := int(*price)
			rec.PriceRange = &p
		}
		if len(attrs) > 0 {
			var a domain.Attributes
			if err := json.Unmarshal(attrs, &a); err == nil {
				rec.Attributes = &a
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r.norm.Catalog(recs), nil
}
