// Package sqlite is a single-file catalog store for local development and the
// dinectl tool. It implements the same port as the PostGIS repository.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/core/usecases"
	"github.com/samirrijal/dineradar/internal/pkg/geospatial"
)

// RestaurantRepo implements ports.PersistedCatalog on SQLite.
type RestaurantRepo struct {
	db   *sql.DB
	mu   sync.Mutex
	norm *usecases.Normalizer
}

var _ ports.PersistedCatalog = (*RestaurantRepo)(nil)

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string, log *slog.Logger) (*RestaurantRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &RestaurantRepo{db: db, norm: usecases.NewNormalizer(log)}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS restaurants (
		id TEXT PRIMARY KEY,
		identity_key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		cuisines TEXT NOT NULL DEFAULT '[]',
		price_range INTEGER CHECK (price_range BETWEEN 1 AND 4),
		rating REAL CHECK (rating BETWEEN 0 AND 5),
		attributes TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_restaurants_coords ON restaurants(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_restaurants_postal ON restaurants(postal_code);
	CREATE INDEX IF NOT EXISTS idx_restaurants_name ON restaurants(name);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, name, address, postal_code, lat, lng, cuisines, price_range, rating, attributes FROM restaurants`

// GetAll returns up to limit restaurants ordered by name; limit <= 0 returns
// every row. Cuisine matching is case-insensitive and happens after the scan
// since cuisines are stored as JSON.
func (r *RestaurantRepo) GetAll(ctx context.Context, limit int, cuisine string) ([]domain.Restaurant, error) {
	query := selectColumns + ` ORDER BY name`
	args := []any{}
	if cuisine == "" && limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying restaurants: %w", err)
	}
	list, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	if cuisine != "" {
		list = usecases.FilterRestaurants(list, usecases.Filter{Cuisine: cuisine})
		if limit > 0 && len(list) > limit {
			list = list[:limit]
		}
	}
	return list, nil
}

// GetByID returns nil, nil when the id is unknown.
func (r *RestaurantRepo) GetByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying restaurant %s: %w", id, err)
	}
	list, err := r.collect(rows)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// FindNearby narrows by bounding box in SQL, then applies the exact
// great-circle radius and distance ordering in Go.
func (r *RestaurantRepo) FindNearby(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.Restaurant, error) {
	minLat, minLng, maxLat, maxLng := geospatial.BoundingBox(center.Lat, center.Lng, radiusMeters)
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("querying nearby: %w", err)
	}
	list, err := r.collect(rows)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		r domain.Restaurant
		d float64
	}
	within := make([]ranked, 0, len(list))
	for _, rs := range list {
		d := geospatial.Haversine(center.Lat, center.Lng, rs.Coordinates.Lat, rs.Coordinates.Lng)
		if d <= radiusMeters {
			within = append(within, ranked{rs, d})
		}
	}
	sort.SliceStable(within, func(i, j int) bool { return within[i].d < within[j].d })
	if limit > 0 && len(within) > limit {
		within = within[:limit]
	}

	out := make([]domain.Restaurant, len(within))
	for i, w := range within {
		out[i] = w.r
	}
	return out, nil
}

// UpsertBatch inserts new identities in one transaction. Rows whose identity
// key already exists are left untouched so stored enrichment survives.
func (r *RestaurantRepo) UpsertBatch(ctx context.Context, restaurants []domain.Restaurant) (int, error) {
	if len(restaurants) == 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO restaurants
		(id, identity_key, name, address, postal_code, lat, lng, cuisines, price_range, rating, attributes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rs := range restaurants {
		cuisines, err := json.Marshal(nonNil(rs.CuisineType))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("encode cuisines for %s: %w", rs.ID, err)
		}
		var attrs *string
		if rs.Attributes != nil {
			b, err := json.Marshal(rs.Attributes)
			if err != nil {
				tx.Rollback()
				return 0, fmt.Errorf("encode attributes for %s: %w", rs.ID, err)
			}
			s := string(b)
			attrs = &s
		}
		res, err := stmt.ExecContext(ctx,
			rs.ID, domain.IdentityKey(rs), rs.Name, rs.Address, rs.PostalCode,
			rs.Coordinates.Lat, rs.Coordinates.Lng, string(cuisines), rs.PriceRange, rs.Rating, attrs,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting %s: %w", rs.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// Count returns the number of stored restaurants.
func (r *RestaurantRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restaurants").Scan(&count)
	return count, err
}

// Ping checks that the database file is reachable.
func (r *RestaurantRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *RestaurantRepo) Close() error {
	return r.db.Close()
}

func (r *RestaurantRepo) collect(rows *sql.Rows) ([]domain.Restaurant, error) {
	defer rows.Close()

	var recs []ports.CatalogRecord
	for rows.Next() {
		var (
			rec      ports.CatalogRecord
			lat, lng float64
			cuisines string
			price    sql.NullInt64
			rating   sql.NullFloat64
			attrs    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Address, &rec.PostalCode,
			&lat, &lng, &cuisines, &price, &rating, &attrs); err != nil {
			return nil, fmt.Errorf("scanning restaurant: %w", err)
		}
		rec.Lat, rec.Lng = &lat, &lng
		_ = json.Unmarshal([]byte(cuisines), &rec.Cuisines)
		if price.Valid {
			p := int(price.Int64)
			rec.PriceRange = &p
		}
		if rating.Valid {
			v := rating.Float64
			rec.Rating = &v
		}
		if attrs.Valid {
			var a domain.Attributes
			if err := json.Unmarshal([]byte(attrs.String), &a); err == nil {
				rec.Attributes = &a
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.norm.Catalog(recs), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
