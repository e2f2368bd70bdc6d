package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{6.0, 6, true},
		{int64(3), 3, true},
		{json.Number("2000"), 2000, true},
		{" 1.5 ", 1.5, true},
		{"two", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{math.NaN(), 0, false},
		{true, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ToFloat(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/properties/123", "https://www.rightmove.co.uk/properties/123"},
		{"https://example.com/p/1", "https://example.com/p/1"},
		{"", ""},
	}

	for _, tt := range tests {
		got := NormalizeURL("https://www.rightmove.co.uk/", tt.in)
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestListingFromRow(t *testing.T) {
	row := Row{
		ColID:             json.Number("42"),
		ColBedrooms:       json.Number("2"),
		ColBathrooms:      "two",
		ColPriceAmount:    json.Number("2000"),
		ColPriceFrequency: "monthly",
		ColPricePerBed:    1000.0,
		ColPropertyURL:    "/properties/42",
		ColPremiumListing: true,
	}

	l, err := ListingFromRow(row)
	if err != nil {
		t.Fatalf("ListingFromRow: %v", err)
	}
	if l.ID != "42" {
		t.Errorf("ID: got %q, want %q", l.ID, "42")
	}
	if l.Bedrooms == nil || *l.Bedrooms != 2 {
		t.Errorf("Bedrooms: got %v, want 2", l.Bedrooms)
	}
	if l.Bathrooms != "two" {
		t.Errorf("Bathrooms: got %v, want raw string", l.Bathrooms)
	}
	if l.TravelTime != nil {
		t.Errorf("TravelTime: got %v, want nil", *l.TravelTime)
	}
	if !l.PremiumListing {
		t.Error("PremiumListing should be true")
	}
	if got := len(l.Values()); got != len(PersistedColumns) {
		t.Errorf("Values len: got %d, want %d", got, len(PersistedColumns))
	}
}

func TestListingFromRowRequiresID(t *testing.T) {
	if _, err := ListingFromRow(Row{ColBedrooms: 1.0}); err == nil {
		t.Error("expected error for row without id")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := &Listing{ID: "1", PricePerBed: Float(100)}
	c := l.Clone()
	*c.PricePerBed = 500
	if *l.PricePerBed != 100 {
		t.Errorf("original mutated: got %v, want 100", *l.PricePerBed)
	}
}
