package storage

import (
	"context"
	"path/filepath"
	"testing"

	"rental-sync/models"
	"rental-sync/utils"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "properties.db")
	s, err := NewSQLiteStore(context.Background(), path, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func listing(id string) *models.Listing {
	return &models.Listing{
		ID:             id,
		Bedrooms:       models.Float(2),
		Bathrooms:      1.0,
		DisplayAddress: "Flat " + id + ", London",
		PriceAmount:    models.Float(2000),
		PriceFrequency: models.FrequencyMonthly,
		PropertyURL:    "/properties/" + id,
		PricePerBed:    models.Float(1000),
		PremiumListing: true,
	}
}

func byID(listings []*models.Listing) map[string]*models.Listing {
	out := make(map[string]*models.Listing, len(listings))
	for _, l := range listings {
		out[l.ID] = l
	}
	return out
}

func TestMergeInsertsNewIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Merge(ctx, []*models.Listing{listing("1"), listing("2")})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if n != 2 {
		t.Errorf("affected: got %d, want 2", n)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("stored: got %d, want 2", len(all))
	}
	got := byID(all)["1"]
	if got.DisplayAddress != "Flat 1, London" {
		t.Errorf("address: got %q", got.DisplayAddress)
	}
	if got.PricePerBed == nil || *got.PricePerBed != 1000 {
		t.Errorf("price_per_bed: got %v, want 1000", got.PricePerBed)
	}
	if !got.PremiumListing {
		t.Error("premiumListing: got false, want true")
	}
	if got.TravelTime != nil || got.PredictedPricePerBed != nil {
		t.Error("enrichment columns should be NULL")
	}
}

func TestMergeFillsOnlyNulls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, []*models.Listing{listing("1")}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	first := listing("1")
	first.TravelTime = models.Float(600)
	first.Distance = models.Float(4200)
	n, err := s.Merge(ctx, []*models.Listing{first})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if n != 1 {
		t.Errorf("travel fill affected: got %d, want 1", n)
	}

	second := listing("1")
	second.TravelTime = models.Float(9999)
	second.Distance = models.Float(1)
	second.PredictedPricePerBed = models.Float(1100)
	n, err = s.Merge(ctx, []*models.Listing{second})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if n != 1 {
		t.Errorf("prediction fill affected: got %d, want 1", n)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	got := all[0]
	if got.TravelTime == nil || *got.TravelTime != 600 {
		t.Errorf("travel_time: got %v, want 600", got.TravelTime)
	}
	if got.Distance == nil || *got.Distance != 4200 {
		t.Errorf("distance: got %v, want 4200", got.Distance)
	}
	if got.PredictedPricePerBed == nil || *got.PredictedPricePerBed != 1100 {
		t.Errorf("predicted: got %v, want 1100", got.PredictedPricePerBed)
	}
}

func TestMergeCountsEachListingOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, []*models.Listing{listing("1"), listing("2")}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	filled := listing("1")
	filled.TravelTime = models.Float(600)
	filled.Distance = models.Float(4200)
	filled.PredictedPricePerBed = models.Float(1100)
	fresh := listing("3")
	fresh.PredictedPricePerBed = models.Float(900)

	n, err := s.Merge(ctx, []*models.Listing{filled, listing("2"), fresh})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if n != 2 {
		t.Errorf("affected: got %d, want 2", n)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []*models.Listing{listing("1"), listing("2")}
	batch[0].TravelTime = models.Float(900)
	batch[0].Distance = models.Float(3000)
	batch[1].PredictedPricePerBed = models.Float(850)

	if _, err := s.Merge(ctx, batch); err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	before, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	n, err := s.Merge(ctx, batch)
	if err != nil {
		t.Fatalf("second Merge: %v", err)
	}
	if n != 0 {
		t.Errorf("second run affected: got %d, want 0", n)
	}

	after, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("rows: got %d, want %d", len(after), len(before))
	}
	for i := range before {
		b, a := before[i].Values(), after[i].Values()
		for j := range b {
			if b[j] != a[j] {
				t.Errorf("row %d column %s: got %v, want %v", i, models.PersistedColumns[j], a[j], b[j])
			}
		}
	}
}

func TestMergeKeepsFirstDuplicateInBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := listing("7")
	b := listing("7")
	b.DisplayAddress = "second copy"
	if _, err := s.Merge(ctx, []*models.Listing{a, b}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 1 || all[0].DisplayAddress != "Flat 7, London" {
		t.Errorf("stored: got %+v", all)
	}
}

func TestResetDropsTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Merge(ctx, []*models.Listing{listing("1")}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rows after reset: got %d, want 0", len(all))
	}
}
