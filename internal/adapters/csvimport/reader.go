// Package csvimport loads restaurant catalog rows from CSV exports.
//
// The header row names the columns; order is free and unknown columns are
// ignored. Recognised columns:
//
//	id, name, address, postal_code, lat, lng, cuisines, price_range, rating,
//	quietness, atmosphere, service_speed, cleanliness, kid_friendly,
//	outdoor_seating, wheelchair_accessible, tags
//
// cuisines and tags are semicolon-separated lists.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
	"github.com/samirrijal/dineradar/internal/core/usecases"
)

const batchSize = 500

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"id", "name", "lat", "lng"}

// Stats summarises one import.
type Stats struct {
	Rows     int // data rows read
	Skipped  int // malformed rows or rows the normalizer rejected
	Inserted int // rows new to the catalog
}

// ReadRecords parses a CSV stream into raw catalog records. Rows with a
// malformed numeric field keep the field unset and are left to the
// normalizer to accept or reject.
func ReadRecords(r io.Reader) ([]ports.CatalogRecord, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var out []ports.CatalogRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("line %d: %w", len(out)+2, err)
		}
		out = append(out, toRecord(record, cols))
	}
	return out, nil
}

// Import reads r, normalizes each row and upserts the accepted restaurants
// into catalog in batches.
func Import(ctx context.Context, r io.Reader, catalog ports.PersistedCatalog, log *slog.Logger) (Stats, error) {
	if log == nil {
		log = slog.Default()
	}
	var stats Stats

	recs, err := ReadRecords(r)
	if err != nil {
		return stats, err
	}
	stats.Rows = len(recs)

	restaurants := usecases.NewNormalizer(log).Catalog(recs)
	stats.Skipped = stats.Rows - len(restaurants)

	for start := 0; start < len(restaurants); start += batchSize {
		end := min(start+batchSize, len(restaurants))
		n, err := catalog.UpsertBatch(ctx, restaurants[start:end])
		if err != nil {
			return stats, fmt.Errorf("upsert rows %d-%d: %w", start, end, err)
		}
		stats.Inserted += n
		log.Debug("import batch stored", "from", start, "to", end, "inserted", n)
	}

	log.Info("catalog import complete", "rows", stats.Rows, "skipped", stats.Skipped, "inserted", stats.Inserted)
	return stats, nil
}

func toRecord(record []string, cols map[string]int) ports.CatalogRecord {
	rec := ports.CatalogRecord{
		ID:         getField(record, cols, "id"),
		Name:       getField(record, cols, "name"),
		Address:    getField(record, cols, "address"),
		PostalCode: getField(record, cols, "postal_code"),
		Lat:        parseFloat(getField(record, cols, "lat")),
		Lng:        parseFloat(getField(record, cols, "lng")),
		Cuisines:   splitList(getField(record, cols, "cuisines")),
		PriceRange: parseInt(getField(record, cols, "price_range")),
		Rating:     parseFloat(getField(record, cols, "rating")),
	}

	attrs := domain.Attributes{
		Quietness:            parseInt(getField(record, cols, "quietness")),
		Atmosphere:           parseInt(getField(record, cols, "atmosphere")),
		ServiceSpeed:         parseInt(getField(record, cols, "service_speed")),
		Cleanliness:          parseInt(getField(record, cols, "cleanliness")),
		KidFriendly:          parseBool(getField(record, cols, "kid_friendly")),
		OutdoorSeating:       parseBool(getField(record, cols, "outdoor_seating")),
		WheelchairAccessible: parseBool(getField(record, cols, "wheelchair_accessible")),
		Tags:                 splitList(getField(record, cols, "tags")),
	}
	if hasAttributes(attrs) {
		rec.Attributes = &attrs
	}
	return rec
}

func hasAttributes(a domain.Attributes) bool {
	return a.Quietness != nil || a.Atmosphere != nil || a.ServiceSpeed != nil ||
		a.Cleanliness != nil || a.KidFriendly != nil || a.OutdoorSeating != nil ||
		a.WheelchairAccessible != nil || len(a.Tags) > 0
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseBool(s string) *bool {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &v
}
