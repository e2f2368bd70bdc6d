package services

import (
	"errors"
	"math"
	"testing"

	"rental-sync/models"
)

func enrichable(id string, ppb float64, frequency string, travel float64, baths any) *models.Listing {
	return &models.Listing{
		ID:             id,
		PricePerBed:    models.Float(ppb),
		PriceFrequency: frequency,
		TravelTime:     models.Float(travel),
		Bathrooms:      baths,
	}
}

func TestPrepareForModelBathroomBoundary(t *testing.T) {
	e := NewEnricher(newTestLogger())

	tests := []struct {
		name  string
		baths any
		keep  bool
	}{
		{"one", 1, true},
		{"six", 6, true},
		{"six as text", "6", true},
		{"just over six", 6.01, false},
		{"zero", 0, false},
		{"word", "two", false},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []*models.Listing{enrichable("1", 1000, models.FrequencyMonthly, 600, tt.baths)}
			got := e.PrepareForModel(in, []string{"monthly", "weekly"})
			if (len(got) == 1) != tt.keep {
				t.Errorf("bathrooms %v: kept %v, want %v", tt.baths, len(got) == 1, tt.keep)
			}
		})
	}
}

func TestPrepareForModelRanges(t *testing.T) {
	e := NewEnricher(newTestLogger())

	tests := []struct {
		name   string
		ppb    float64
		freq   string
		travel float64
		keep   bool
	}{
		{"inside", 1000, "monthly", 600, true},
		{"travel at min", 1000, "monthly", 60, true},
		{"travel at max", 1000, "monthly", 5400, true},
		{"travel too short", 1000, "monthly", 59, false},
		{"travel too long", 1000, "monthly", 5401, false},
		{"price at min", 100, "monthly", 600, true},
		{"price at max", 10000, "monthly", 600, true},
		{"price too low", 99, "monthly", 600, false},
		{"weekly scaled into range", 30, "weekly", 600, true},
		{"weekly scaled out of range", 2400, "weekly", 600, false},
		{"daily frequency", 1000, "daily", 600, false},
		{"no frequency", 1000, "", 600, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []*models.Listing{enrichable("1", tt.ppb, tt.freq, tt.travel, 1)}
			got := e.PrepareForModel(in, []string{"monthly", "weekly"})
			if (len(got) == 1) != tt.keep {
				t.Errorf("kept %v, want %v", len(got) == 1, tt.keep)
			}
		})
	}
}

func TestPrepareForModelMissingValues(t *testing.T) {
	e := NewEnricher(newTestLogger())

	noPrice := enrichable("1", 0, "monthly", 600, 1)
	noPrice.PricePerBed = nil
	noTravel := enrichable("2", 1000, "monthly", 0, 1)
	noTravel.TravelTime = nil

	got := e.PrepareForModel([]*models.Listing{noPrice, noTravel}, []string{"monthly"})
	if len(got) != 0 {
		t.Errorf("kept %d listings with missing values, want 0", len(got))
	}
}

func TestPrepareForModelNormalisesWeekly(t *testing.T) {
	e := NewEnricher(newTestLogger())

	in := []*models.Listing{enrichable("1", 300, models.FrequencyWeekly, 600, 1)}
	got := e.PrepareForModel(in, []string{"monthly", "weekly"})
	if len(got) != 1 {
		t.Fatalf("kept: got %d, want 1", len(got))
	}
	want := 300 * 52.0 / 12.0
	if math.Abs(*got[0].PricePerBed-want) > 1e-9 {
		t.Errorf("price_per_bed: got %v, want %v", *got[0].PricePerBed, want)
	}
	if *in[0].PricePerBed != 300 {
		t.Errorf("input mutated: price_per_bed %v", *in[0].PricePerBed)
	}
	if got[0] == in[0] {
		t.Error("output shares a pointer with input")
	}
}

func TestAttachPredictions(t *testing.T) {
	e := NewEnricher(newTestLogger())

	in := []*models.Listing{
		enrichable("1", 1000, "monthly", 600, 1.0),
		enrichable("2", 800, "monthly", 1200, 2.0),
	}

	calls := 0
	predictor := PredictorFunc(func(features [][]float64) ([]float64, error) {
		calls++
		out := make([]float64, len(features))
		for i, f := range features {
			out[i] = f[0] + f[1]
		}
		return out, nil
	})

	got, err := e.AttachPredictions(in, predictor)
	if err != nil {
		t.Fatalf("AttachPredictions: %v", err)
	}
	if calls != 1 {
		t.Errorf("predictor calls: got %d, want 1", calls)
	}
	if *got[0].PredictedPricePerBed != 601 || *got[1].PredictedPricePerBed != 1202 {
		t.Errorf("predictions: got %v, %v", *got[0].PredictedPricePerBed, *got[1].PredictedPricePerBed)
	}
	if in[0].PredictedPricePerBed != nil {
		t.Error("input mutated")
	}
}

func TestAttachPredictionsCountMismatch(t *testing.T) {
	e := NewEnricher(newTestLogger())

	in := []*models.Listing{enrichable("1", 1000, "monthly", 600, 1.0)}
	short := PredictorFunc(func([][]float64) ([]float64, error) { return nil, nil })

	if _, err := e.AttachPredictions(in, short); err == nil {
		t.Error("expected an error for a short prediction slice")
	}
}

func TestAttachPredictionsPredictorError(t *testing.T) {
	e := NewEnricher(newTestLogger())

	boom := errors.New("model unavailable")
	in := []*models.Listing{enrichable("1", 1000, "monthly", 600, 1.0)}
	failing := PredictorFunc(func([][]float64) ([]float64, error) { return nil, boom })

	_, err := e.AttachPredictions(in, failing)
	if !errors.Is(err, boom) {
		t.Errorf("error: got %v, want wrapped %v", err, boom)
	}
}
