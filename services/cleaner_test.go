package services

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"rental-sync/models"
	"rental-sync/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

// rawListing builds a search result with every base column present.
func rawListing(id string, bedrooms any, amount any, frequency string) models.RawListing {
	return models.RawListing{
		"id":             id,
		"bedrooms":       bedrooms,
		"bathrooms":      1,
		"numberOfImages": 8,
		"displayAddress": "Flat " + id + ", Bank, EC2",
		"location":       map[string]any{"latitude": 51.51, "longitude": -0.09},
		"listingUpdate": map[string]any{
			"listingUpdateReason": "new",
			"listingUpdateDate":   "2024-03-01T10:00:00Z",
		},
		"price":                       map[string]any{"amount": amount, "frequency": frequency, "currencyCode": "GBP"},
		"propertySubType":             "Flat",
		"premiumListing":              false,
		"featuredProperty":            false,
		"transactionType":             "rent",
		"students":                    false,
		"displaySize":                 "",
		"propertyUrl":                 "/properties/" + id + "#/?channel=RES_LET",
		"firstVisibleDate":            "2024-03-01T10:00:00Z",
		"addedOrReduced":              "Added on 01/03/2024",
		"propertyTypeFullDescription": "2 bedroom flat",
		"summary":                     "ignored",
	}
}

func TestCleanProjectsBaseColumns(t *testing.T) {
	c := NewCleaner(newTestLogger())

	rows, err := c.Clean([]models.RawListing{rawListing("1", 2, 2000, "monthly")})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}
	row := rows[0]
	if len(row) != len(baseColumns)+1 {
		t.Errorf("columns: got %d, want %d", len(row), len(baseColumns)+1)
	}
	if _, ok := row["summary"]; ok {
		t.Error("unprojected column kept")
	}
	if row["location.latitude"] != 51.51 {
		t.Errorf("location.latitude: got %v", row["location.latitude"])
	}
	if row[models.ColPricePerBed] != 1000.0 {
		t.Errorf("price_per_bed: got %v, want 1000", row[models.ColPricePerBed])
	}
}

func TestCleanPricePerBed(t *testing.T) {
	tests := []struct {
		name     string
		bedrooms any
		amount   any
		want     any
	}{
		{"two beds", 2, 2000, 1000.0},
		{"json numbers", json.Number("4"), json.Number("3000"), 750.0},
		{"zero beds", 0, 1500, nil},
		{"null beds", nil, 1500, nil},
		{"text beds", "studio", 1500, nil},
		{"null amount", 2, nil, nil},
	}

	c := NewCleaner(newTestLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := c.Clean([]models.RawListing{rawListing("1", tt.bedrooms, tt.amount, "monthly")})
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			if len(rows) != 1 {
				t.Fatalf("undefined price rows must be kept, got %d rows", len(rows))
			}
			if got := rows[0][models.ColPricePerBed]; got != tt.want {
				t.Errorf("price_per_bed: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanKeepsFirstDuplicate(t *testing.T) {
	c := NewCleaner(newTestLogger())

	first := rawListing("1", 2, 2000, "monthly")
	second := rawListing("1", 3, 9000, "weekly")
	other := rawListing("2", 1, 800, "monthly")

	rows, err := c.Clean([]models.RawListing{first, second, other})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	if rows[0]["price.amount"] != 2000 || rows[0]["price.frequency"] != "monthly" {
		t.Errorf("duplicate kept the wrong record: %v", rows[0])
	}
	if models.AsString(rows[1]["id"]) != "2" {
		t.Errorf("second row id: got %v, want 2", rows[1]["id"])
	}
}

func TestCleanMissingColumn(t *testing.T) {
	c := NewCleaner(newTestLogger())

	broken := rawListing("2", 2, 2000, "monthly")
	delete(broken, "listingUpdate")

	_, err := c.Clean([]models.RawListing{rawListing("1", 2, 2000, "monthly"), broken})
	var se *models.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error: got %v, want *models.SchemaError", err)
	}
	if se.Index != 1 || !strings.HasPrefix(se.Column, "listingUpdate.") {
		t.Errorf("schema error: got index %d column %q", se.Index, se.Column)
	}
}

func TestCleanAllowsNullColumn(t *testing.T) {
	c := NewCleaner(newTestLogger())

	r := rawListing("1", 2, 2000, "monthly")
	r["displaySize"] = nil
	r["location"] = map[string]any{"latitude": nil, "longitude": nil}

	rows, err := c.Clean([]models.RawListing{r})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if v, ok := rows[0]["location.latitude"]; !ok || v != nil {
		t.Errorf("location.latitude: got %v (present %v), want nil", v, ok)
	}
}

func TestRename(t *testing.T) {
	c := NewCleaner(newTestLogger())

	rows, err := c.Clean([]models.RawListing{rawListing("1", 2, 2000, "monthly")})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	renamed := c.Rename(rows)

	for _, col := range models.CleanColumns {
		if _, ok := renamed[0][col]; !ok {
			t.Errorf("renamed row missing %s", col)
		}
	}
	for dotted := range renameTable {
		if _, ok := renamed[0][dotted]; ok {
			t.Errorf("renamed row still has %s", dotted)
		}
	}
	if _, ok := rows[0]["price.amount"]; !ok {
		t.Error("Rename modified its input")
	}
}

func TestToListings(t *testing.T) {
	c := NewCleaner(newTestLogger())

	rows, err := c.Clean([]models.RawListing{rawListing("42", 2, 2000, "monthly")})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	listings, err := c.ToListings(c.Rename(rows))
	if err != nil {
		t.Fatalf("ToListings: %v", err)
	}

	l := listings[0]
	if l.ID != "42" {
		t.Errorf("id: got %q, want 42", l.ID)
	}
	if l.PriceAmount == nil || *l.PriceAmount != 2000 {
		t.Errorf("price amount: got %v, want 2000", l.PriceAmount)
	}
	if l.PriceFrequency != models.FrequencyMonthly {
		t.Errorf("frequency: got %q", l.PriceFrequency)
	}
	if l.ListingUpdateReason != "new" {
		t.Errorf("update reason: got %q", l.ListingUpdateReason)
	}
	if l.NumberOfImages == nil || *l.NumberOfImages != 8 {
		t.Errorf("images: got %v, want 8", l.NumberOfImages)
	}
}
