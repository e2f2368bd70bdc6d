package services

import (
	"context"
	"testing"

	"rental-sync/models"
)

// Duplicate raw records flow through cleaning, filtering, prediction and
// both syncs as a single row.
func TestPipelineDuplicateRecordEndToEnd(t *testing.T) {
	ctx := context.Background()
	cleaner := NewCleaner(newTestLogger())
	enricher := NewEnricher(newTestLogger())

	raw := []models.RawListing{
		rawListing("1", 2, 2000, "monthly"),
		rawListing("1", 2, 2000, "monthly"),
	}

	rows, err := cleaner.Clean(raw)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("clean rows: got %d, want 1", len(rows))
	}
	if rows[0][models.ColPricePerBed] != 1000.0 {
		t.Errorf("price_per_bed: got %v, want 1000", rows[0][models.ColPricePerBed])
	}

	listings, err := cleaner.ToListings(cleaner.Rename(rows))
	if err != nil {
		t.Fatalf("ToListings: %v", err)
	}
	listings[0].TravelTime = models.Float(600)

	prepared := enricher.PrepareForModel(listings, []string{"monthly", "weekly"})
	if len(prepared) != 1 {
		t.Fatalf("prepared: got %d, want 1", len(prepared))
	}

	predictor := PredictorFunc(func(features [][]float64) ([]float64, error) {
		if features[0][0] != 600 || features[0][1] != 1 {
			t.Errorf("features: got %v, want [600 1]", features[0])
		}
		return []float64{1234.5}, nil
	})
	out, err := enricher.AttachPredictions(prepared, predictor)
	if err != nil {
		t.Fatalf("AttachPredictions: %v", err)
	}

	remote := newMemoryRemote()
	local := newLocalStore(t)
	syncer := NewSynchronizer(local, remote, newTestLogger())

	if n, err := syncer.SyncLocal(ctx, out); err != nil || n != 1 {
		t.Fatalf("SyncLocal: got %d, %v; want 1, nil", n, err)
	}
	n, err := syncer.SyncRemote(ctx, out)
	if err != nil {
		t.Fatalf("SyncRemote: %v", err)
	}
	if n != 1 || len(remote.rows) != 1 {
		t.Fatalf("remote: inserted %d, stored %d; want 1 and 1", n, len(remote.rows))
	}
	if got := remote.rows["1"].PredictedPricePerBed; got == nil || *got != 1234.5 {
		t.Errorf("remote prediction: got %v, want 1234.5", got)
	}

	stored, err := local.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(stored) != 1 || stored[0].PredictedPricePerBed == nil || *stored[0].PredictedPricePerBed != 1234.5 {
		t.Errorf("local row: got %+v", stored)
	}
}
