package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"rental-sync/models"
	"rental-sync/utils"
)

const stagingTable = "temp_updates"

// SQLiteStore is the local store: a single SQLite file holding every
// listing ever seen.
type SQLiteStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewSQLiteStore opens (or creates) the database file at path and ensures
// the listings table exists. Intermediate directories are created.
func NewSQLiteStore(ctx context.Context, path string, logger *utils.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// temp_updates lives on the connection that created it
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates properties_data if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(dialectSQLite, TableName, false)); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", TableName, err)
	}
	return nil
}

// Merge stages listings in temp_updates, inserts ids not yet stored and then
// fills travel_time/distance and predicted_price_per_bed where the stored
// value is NULL. Everything runs in one transaction. It returns the number
// of distinct listings inserted or filled.
func (s *SQLiteStore) Merge(ctx context.Context, listings []*models.Listing) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createTableSQL(dialectSQLite, TableName, false)); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", TableName, err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS temp."+stagingTable); err != nil {
		return 0, fmt.Errorf("sqlite: drop staging: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(dialectSQLite, stagingTable, true)); err != nil {
		return 0, fmt.Errorf("sqlite: create staging: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(dialectSQLite, "INSERT OR IGNORE", stagingTable, ""))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare staging insert: %w", err)
	}
	for _, l := range listings {
		if _, err := stmt.ExecContext(ctx, l.Values()...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("sqlite: stage %s: %w", l.ID, err)
		}
	}
	_ = stmt.Close()

	touched := utils.NewIDSet()
	for _, step := range []struct {
		name  string
		query string
	}{
		{"insert new", insertNewSQL},
		{"fill travel time", fillTravelTimeSQL},
		{"fill predicted price", fillPredictedSQL},
	} {
		n, err := applyStep(ctx, tx, step.query, touched)
		if err != nil {
			return 0, fmt.Errorf("sqlite: %s: %w", step.name, err)
		}
		s.logger.Debug("[sqlite] %s: %d row(s)", step.name, n)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS temp."+stagingTable); err != nil {
		return 0, fmt.Errorf("sqlite: drop staging: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return int64(touched.Size()), nil
}

// applyStep runs query and adds the id of every row it wrote to touched.
func applyStep(ctx context.Context, tx *sql.Tx, query string, touched *utils.IDSet) (int, error) {
	rows, err := tx.QueryContext(ctx, query+` RETURNING "id"`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return n, err
		}
		touched.Add(id)
		n++
	}
	return n, rows.Err()
}

var insertNewSQL = fmt.Sprintf(`
	INSERT INTO %[1]s (%[3]s)
	SELECT %[4]s FROM temp.%[2]s t
	WHERE NOT EXISTS (SELECT 1 FROM %[1]s p WHERE p."id" = t."id")`,
	TableName, stagingTable, quotedColumns(""), quotedColumns("t"))

var fillTravelTimeSQL = fmt.Sprintf(`
	UPDATE %[1]s
	SET "travel_time" = COALESCE("travel_time",
			(SELECT t."travel_time" FROM temp.%[2]s t WHERE t."id" = %[1]s."id")),
		"distance" = COALESCE("distance",
			(SELECT t."distance" FROM temp.%[2]s t WHERE t."id" = %[1]s."id"))
	WHERE EXISTS (
		SELECT 1 FROM temp.%[2]s t
		WHERE t."id" = %[1]s."id"
		  AND ((%[1]s."travel_time" IS NULL AND t."travel_time" IS NOT NULL)
		    OR (%[1]s."distance" IS NULL AND t."distance" IS NOT NULL))
	)`, TableName, stagingTable)

var fillPredictedSQL = fmt.Sprintf(`
	UPDATE %[1]s
	SET "predicted_price_per_bed" =
		(SELECT t."predicted_price_per_bed" FROM temp.%[2]s t WHERE t."id" = %[1]s."id")
	WHERE "predicted_price_per_bed" IS NULL
	  AND EXISTS (
		SELECT 1 FROM temp.%[2]s t
		WHERE t."id" = %[1]s."id" AND t."predicted_price_per_bed" IS NOT NULL
	)`, TableName, stagingTable)

// LoadAll returns every stored listing in insertion order.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*models.Listing, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", quotedColumns(""), TableName))
	if err != nil {
		return nil, fmt.Errorf("sqlite: load all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		values := make([]any, len(models.PersistedColumns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}

		row := make(models.Row, len(values))
		for i, c := range models.PersistedColumns {
			row[c] = values[i]
		}
		l, err := models.ListingFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("sqlite: decode row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Reset drops properties_data.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+TableName); err != nil {
		return fmt.Errorf("sqlite: reset: %w", err)
	}
	s.logger.Warn("[sqlite] Dropped %s", TableName)
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
