package storage

import (
	"fmt"
	"strings"

	"rental-sync/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

type columnKind int

const (
	kindText columnKind = iota
	kindReal
	kindInt
	kindBool
)

var columnKinds = map[string]columnKind{
	models.ColID:                          kindText,
	models.ColBedrooms:                    kindReal,
	models.ColBathrooms:                   kindReal,
	models.ColNumberOfImages:              kindInt,
	models.ColDisplayAddress:              kindText,
	models.ColLatitude:                    kindReal,
	models.ColLongitude:                   kindReal,
	models.ColPropertySubType:             kindText,
	models.ColListingUpdateReason:         kindText,
	models.ColListingUpdateDate:           kindText,
	models.ColPriceAmount:                 kindReal,
	models.ColPriceFrequency:              kindText,
	models.ColPremiumListing:              kindBool,
	models.ColFeaturedProperty:            kindBool,
	models.ColTransactionType:             kindText,
	models.ColStudents:                    kindBool,
	models.ColDisplaySize:                 kindText,
	models.ColPropertyURL:                 kindText,
	models.ColFirstVisibleDate:            kindText,
	models.ColAddedOrReduced:              kindText,
	models.ColPropertyTypeFullDescription: kindText,
	models.ColPricePerBed:                 kindReal,
	models.ColTravelTime:                  kindReal,
	models.ColDistance:                    kindReal,
	models.ColPredictedPricePerBed:        kindReal,
}

func (d dialect) typeOf(k columnKind) string {
	switch k {
	case kindReal:
		if d == dialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case kindInt:
		if d == dialectPostgres {
			return "BIGINT"
		}
		return "INTEGER"
	case kindBool:
		if d == dialectPostgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	}
	return "TEXT"
}

func (d dialect) placeholder(i int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func quote(col string) string {
	return `"` + col + `"`
}

// quotedColumns returns PersistedColumns quoted and comma-joined, optionally
// qualified with a table alias.
func quotedColumns(alias string) string {
	cols := make([]string, len(models.PersistedColumns))
	for i, c := range models.PersistedColumns {
		if alias != "" {
			cols[i] = alias + "." + quote(c)
		} else {
			cols[i] = quote(c)
		}
	}
	return strings.Join(cols, ", ")
}

// createTableSQL builds the CREATE statement for a listings table.
func createTableSQL(d dialect, table string, temp bool) string {
	defs := make([]string, 0, len(models.PersistedColumns))
	for _, c := range models.PersistedColumns {
		def := quote(c) + " " + d.typeOf(columnKinds[c])
		if c == models.ColID {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}

	head := "CREATE TABLE IF NOT EXISTS "
	if temp {
		head = "CREATE TEMP TABLE "
	}
	return head + table + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

// insertSQL builds a single-row INSERT with one placeholder per column.
func insertSQL(d dialect, verb, table, suffix string) string {
	ph := make([]string, len(models.PersistedColumns))
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}
	q := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, table, quotedColumns(""), strings.Join(ph, ", "))
	if suffix != "" {
		q += " " + suffix
	}
	return q
}
