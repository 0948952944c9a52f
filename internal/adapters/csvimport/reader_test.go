package csvimport_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samirrijal/dineradar/internal/adapters/csvimport"
	"github.com/samirrijal/dineradar/internal/adapters/sqlite"
)

const sample = "\xef\xbb\xbfid,name,address,postal_code,lat,lng,cuisines,price_range,rating,quietness,kid_friendly,tags\n" +
	"p1,Corner Cafe,1 Main St,10001,40.7506,-73.9972,cafe;bakery,2,4.5,80,true,brunch;wifi\n" +
	"p2,Noodle Bar,,10001,40.7510,-73.9960,noodles,9,4.1,,,\n" +
	"p3,Nowhere,,,,,,,,,,\n" +
	"p4,Broken Grill,,,95.0,10.0,,,,,,\n"

func TestReadRecords(t *testing.T) {
	recs, err := csvimport.ReadRecords(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}

	p1 := recs[0]
	if p1.ID != "p1" || p1.Name != "Corner Cafe" || p1.PostalCode != "10001" {
		t.Errorf("unexpected identity fields: %+v", p1)
	}
	if p1.Lat == nil || *p1.Lat != 40.7506 {
		t.Errorf("expected lat 40.7506, got %v", p1.Lat)
	}
	if len(p1.Cuisines) != 2 || p1.Cuisines[1] != "bakery" {
		t.Errorf("expected split cuisines, got %v", p1.Cuisines)
	}
	if p1.Attributes == nil || p1.Attributes.Quietness == nil || *p1.Attributes.Quietness != 80 {
		t.Fatalf("expected quietness 80, got %+v", p1.Attributes)
	}
	if p1.Attributes.KidFriendly == nil || !*p1.Attributes.KidFriendly {
		t.Error("expected kid_friendly true")
	}
	if len(p1.Attributes.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", p1.Attributes.Tags)
	}

	if recs[1].Attributes != nil {
		t.Errorf("expected no attributes for p2, got %+v", recs[1].Attributes)
	}
	if recs[2].Lat != nil {
		t.Error("expected missing lat for p3")
	}
}

func TestReadRecords_MissingColumn(t *testing.T) {
	_, err := csvimport.ReadRecords(strings.NewReader("id,name,lat\np1,Cafe,40\n"))
	if !errors.Is(err, csvimport.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestImport_StoresAcceptedRows(t *testing.T) {
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "import.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	stats, err := csvimport.Import(ctx, strings.NewReader(sample), repo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Rows != 4 || stats.Skipped != 2 || stats.Inserted != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	p2, err := repo.GetByID(ctx, "p2")
	if err != nil || p2 == nil {
		t.Fatalf("expected p2 stored, got %v, %v", p2, err)
	}
	if p2.PriceRange != nil {
		t.Errorf("expected out-of-range price dropped, got %d", *p2.PriceRange)
	}

	// Re-importing the same file adds nothing.
	stats, err = csvimport.Import(ctx, strings.NewReader(sample), repo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Inserted != 0 {
		t.Errorf("expected no new rows on re-import, got %d", stats.Inserted)
	}
}
