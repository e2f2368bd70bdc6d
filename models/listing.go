package models

import (
	"github.com/rotisserie/eris"
)

// RawListing is one element of the search API's "properties" array, decoded
// as-is. Nested objects stay nested until the cleaner flattens them.
type RawListing map[string]any

// Row is a single record of the cleaned table, keyed by column name.
type Row map[string]any

// Column names of the cleaned, renamed table in export order.
const (
	ColID                          = "id"
	ColBedrooms                    = "bedrooms"
	ColBathrooms                   = "bathrooms"
	ColNumberOfImages              = "numberOfImages"
	ColDisplayAddress              = "displayAddress"
	ColLatitude                    = "latitude"
	ColLongitude                   = "longitude"
	ColPropertySubType             = "propertySubType"
	ColListingUpdateReason         = "listingUpdateReason"
	ColListingUpdateDate           = "listingUpdateDate"
	ColPriceAmount                 = "priceAmount"
	ColPriceFrequency              = "priceFrequency"
	ColPremiumListing              = "premiumListing"
	ColFeaturedProperty            = "featuredProperty"
	ColTransactionType             = "transactionType"
	ColStudents                    = "students"
	ColDisplaySize                 = "displaySize"
	ColPropertyURL                 = "propertyUrl"
	ColFirstVisibleDate            = "firstVisibleDate"
	ColAddedOrReduced              = "addedOrReduced"
	ColPropertyTypeFullDescription = "propertyTypeFullDescription"
	ColPricePerBed                 = "price_per_bed"
	ColTravelTime                  = "travel_time"
	ColDistance                    = "distance"
	ColPredictedPricePerBed        = "predicted_price_per_bed"
)

// CleanColumns is the column order of a renamed, cleaned row.
var CleanColumns = []string{
	ColID, ColBedrooms, ColBathrooms, ColNumberOfImages, ColDisplayAddress,
	ColLatitude, ColLongitude, ColPropertySubType, ColListingUpdateReason,
	ColListingUpdateDate, ColPriceAmount, ColPriceFrequency, ColPremiumListing,
	ColFeaturedProperty, ColTransactionType, ColStudents, ColDisplaySize,
	ColPropertyURL, ColFirstVisibleDate, ColAddedOrReduced,
	ColPropertyTypeFullDescription, ColPricePerBed,
}

// EnrichmentColumns are the nullable, fill-once columns of a persisted record.
var EnrichmentColumns = []string{ColTravelTime, ColDistance, ColPredictedPricePerBed}

// PersistedColumns is the full column set of the properties_data table.
var PersistedColumns = append(append([]string{}, CleanColumns...), EnrichmentColumns...)

// Price frequencies reported by the search API.
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Listing is a cleaned rental listing plus its enrichment fields.
// Nil pointers mean the value is absent.
type Listing struct {
	ID                          string
	Bedrooms                    *float64
	Bathrooms                   any // kept loose: the regression filter decides what is numeric
	NumberOfImages              *int64
	DisplayAddress              string
	Latitude                    *float64
	Longitude                   *float64
	PropertySubType             string
	ListingUpdateReason         string
	ListingUpdateDate           string
	PriceAmount                 *float64
	PriceFrequency              string
	PremiumListing              bool
	FeaturedProperty            bool
	TransactionType             string
	Students                    bool
	DisplaySize                 string
	PropertyURL                 string
	FirstVisibleDate            string
	AddedOrReduced              string
	PropertyTypeFullDescription string
	PricePerBed                 *float64

	TravelTime           *float64
	Distance             *float64
	PredictedPricePerBed *float64
}

// Clone returns a shallow copy with its own pointer fields.
func (l *Listing) Clone() *Listing {
	c := *l
	c.Bedrooms = copyFloat(l.Bedrooms)
	c.NumberOfImages = copyInt(l.NumberOfImages)
	c.Latitude = copyFloat(l.Latitude)
	c.Longitude = copyFloat(l.Longitude)
	c.PriceAmount = copyFloat(l.PriceAmount)
	c.PricePerBed = copyFloat(l.PricePerBed)
	c.TravelTime = copyFloat(l.TravelTime)
	c.Distance = copyFloat(l.Distance)
	c.PredictedPricePerBed = copyFloat(l.PredictedPricePerBed)
	return &c
}

// Values returns the listing's column values in PersistedColumns order,
// with absent values as nil so drivers store NULL.
func (l *Listing) Values() []any {
	return []any{
		l.ID, floatOrNil(l.Bedrooms), bathroomsValue(l.Bathrooms), intOrNil(l.NumberOfImages),
		l.DisplayAddress, floatOrNil(l.Latitude), floatOrNil(l.Longitude), l.PropertySubType,
		l.ListingUpdateReason, l.ListingUpdateDate, floatOrNil(l.PriceAmount), l.PriceFrequency,
		l.PremiumListing, l.FeaturedProperty, l.TransactionType, l.Students, l.DisplaySize,
		l.PropertyURL, l.FirstVisibleDate, l.AddedOrReduced, l.PropertyTypeFullDescription,
		floatOrNil(l.PricePerBed),
		floatOrNil(l.TravelTime), floatOrNil(l.Distance), floatOrNil(l.PredictedPricePerBed),
	}
}

// ListingFromRow builds a Listing from a renamed, cleaned row. Enrichment
// columns are read when present.
func ListingFromRow(row Row) (*Listing, error) {
	id, ok := row[ColID]
	if !ok || id == nil {
		return nil, eris.New("row has no id")
	}
	l := &Listing{
		ID:                          AsString(id),
		Bedrooms:                    FloatPtr(row[ColBedrooms]),
		Bathrooms:                   row[ColBathrooms],
		NumberOfImages:              intPtr(row[ColNumberOfImages]),
		DisplayAddress:              AsString(row[ColDisplayAddress]),
		Latitude:                    FloatPtr(row[ColLatitude]),
		Longitude:                   FloatPtr(row[ColLongitude]),
		PropertySubType:             AsString(row[ColPropertySubType]),
		ListingUpdateReason:         AsString(row[ColListingUpdateReason]),
		ListingUpdateDate:           AsString(row[ColListingUpdateDate]),
		PriceAmount:                 FloatPtr(row[ColPriceAmount]),
		PriceFrequency:              AsString(row[ColPriceFrequency]),
		PremiumListing:              asBool(row[ColPremiumListing]),
		FeaturedProperty:            asBool(row[ColFeaturedProperty]),
		TransactionType:             AsString(row[ColTransactionType]),
		Students:                    asBool(row[ColStudents]),
		DisplaySize:                 AsString(row[ColDisplaySize]),
		PropertyURL:                 AsString(row[ColPropertyURL]),
		FirstVisibleDate:            AsString(row[ColFirstVisibleDate]),
		AddedOrReduced:              AsString(row[ColAddedOrReduced]),
		PropertyTypeFullDescription: AsString(row[ColPropertyTypeFullDescription]),
		PricePerBed:                 FloatPtr(row[ColPricePerBed]),
		TravelTime:                  FloatPtr(row[ColTravelTime]),
		Distance:                    FloatPtr(row[ColDistance]),
		PredictedPricePerBed:        FloatPtr(row[ColPredictedPricePerBed]),
	}
	if l.ID == "" {
		return nil, eris.New("row has an empty id")
	}
	return l, nil
}

// FullURL returns the property URL with the site origin prefixed when the
// stored URL is site-relative.
func (l *Listing) FullURL(origin string) string {
	return NormalizeURL(origin, l.PropertyURL)
}

// InsightReport summarises the enriched dataset for the terminal report.
type InsightReport struct {
	TotalListings  int
	WithPrediction int
	WithinBudget   int
	Budget         float64
	AveragePerBed  float64
	MinPerBed      float64
	MaxPerBed      float64
	ByFrequency    map[string]int
	Underpriced    []*Listing
	Recommendation *Listing
	RecommendedURL string
}

func bathroomsValue(v any) any {
	if f, ok := ToFloat(v); ok {
		return f
	}
	if v == nil {
		return nil
	}
	return AsString(v)
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intOrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
