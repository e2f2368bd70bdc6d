package services

import (
	"rental-sync/models"
	"rental-sync/utils"
)

// baseColumns are the flattened source columns kept from each raw listing,
// in output order.
var baseColumns = []string{
	"id",
	"bedrooms",
	"bathrooms",
	"numberOfImages",
	"displayAddress",
	"location.latitude",
	"location.longitude",
	"propertySubType",
	"listingUpdate.listingUpdateReason",
	"listingUpdate.listingUpdateDate",
	"price.amount",
	"price.frequency",
	"premiumListing",
	"featuredProperty",
	"transactionType",
	"students",
	"displaySize",
	"propertyUrl",
	"firstVisibleDate",
	"addedOrReduced",
	"propertyTypeFullDescription",
}

// renameTable maps nested source columns to their flat output names.
var renameTable = map[string]string{
	"location.latitude":                 models.ColLatitude,
	"location.longitude":                models.ColLongitude,
	"listingUpdate.listingUpdateReason": models.ColListingUpdateReason,
	"listingUpdate.listingUpdateDate":   models.ColListingUpdateDate,
	"price.amount":                      models.ColPriceAmount,
	"price.frequency":                   models.ColPriceFrequency,
}

// Cleaner projects raw search results onto the fixed listing schema.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean flattens each raw listing, keeps the base columns, derives
// price_per_bed and drops repeated ids (first occurrence wins).
// A record missing a base column fails the whole batch with
// *models.SchemaError; a column that is present but null is kept as nil.
func (c *Cleaner) Clean(raw []models.RawListing) ([]models.Row, error) {
	seen := utils.NewIDSet()
	result := make([]models.Row, 0, len(raw))
	undefined := 0

	for i, r := range raw {
		flat := flatten(r)

		row := make(models.Row, len(baseColumns)+1)
		for _, col := range baseColumns {
			v, ok := flat[col]
			if !ok {
				return nil, &models.SchemaError{Index: i, Column: col}
			}
			row[col] = v
		}

		id := models.AsString(row["id"])
		if !seen.Add(id) {
			c.logger.Debug("[cleaner] Duplicate id skipped: %s", id)
			continue
		}

		row[models.ColPricePerBed] = pricePerBed(row["price.amount"], row["bedrooms"])
		if row[models.ColPricePerBed] == nil {
			undefined++
		}
		result = append(result, row)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d duplicates, %d without price per bed)",
		len(raw), len(result), len(raw)-len(result), undefined)
	return result, nil
}

// Rename returns copies of rows with nested column names replaced by their
// flat names. Columns outside the rename table keep their names.
func (c *Cleaner) Rename(rows []models.Row) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		renamed := make(models.Row, len(row))
		for k, v := range row {
			if flat, ok := renameTable[k]; ok {
				k = flat
			}
			renamed[k] = v
		}
		out = append(out, renamed)
	}
	return out
}

// ToListings converts renamed rows to typed listings.
func (c *Cleaner) ToListings(rows []models.Row) ([]*models.Listing, error) {
	listings := make([]*models.Listing, 0, len(rows))
	for i, row := range rows {
		l, err := models.ListingFromRow(row)
		if err != nil {
			return nil, &models.SchemaError{Index: i, Column: models.ColID}
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// flatten joins nested object keys with "." the way a JSON normaliser
// does. Arrays are left as values.
func flatten(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			switch nested := v.(type) {
			case map[string]any:
				walk(key, nested)
			case models.RawListing:
				walk(key, nested)
			default:
				out[key] = v
			}
		}
	}
	walk("", raw)
	return out
}

// pricePerBed is amount/bedrooms, or nil when either value is unusable or
// bedrooms is zero.
func pricePerBed(amount, bedrooms any) any {
	a, ok := models.ToFloat(amount)
	if !ok {
		return nil
	}
	b, ok := models.ToFloat(bedrooms)
	if !ok || b == 0 {
		return nil
	}
	return a / b
}
