package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"rental-sync/models"
	"rental-sync/utils"
)

// PostgresStore is the remote store. It only ever adds rows for ids it has
// not seen.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection pool and waits for the server to
// answer a ping.
func NewPostgresStore(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Warn("[postgres] Ping failed (attempt %d/5): %v", i+1, err)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// EnsureSchema creates properties_data if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createTableSQL(dialectPostgres, TableName, false)); err != nil {
		return fmt.Errorf("postgres: create %s: %w", TableName, err)
	}
	return nil
}

// ExistingIDs reads every id currently stored.
func (p *PostgresStore) ExistingIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT "id" FROM %s`, TableName))
	if err != nil {
		return nil, fmt.Errorf("postgres: read ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert adds listings in one transaction. A row whose id appeared since
// ExistingIDs was read is skipped by the ON CONFLICT clause.
func (p *PostgresStore) Insert(ctx context.Context, listings []*models.Listing) (int64, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		insertSQL(dialectPostgres, "INSERT", TableName, `ON CONFLICT ("id") DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("postgres: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, l := range listings {
		res, err := stmt.ExecContext(ctx, postgresValues(l)...)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert %s: %w", l.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("postgres: insert %s: %w", l.ID, err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return inserted, nil
}

// Reset drops properties_data.
func (p *PostgresStore) Reset(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+TableName); err != nil {
		return fmt.Errorf("postgres: reset: %w", err)
	}
	p.logger.Warn("[postgres] Dropped %s", TableName)
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// postgresValues is Listing.Values with bathrooms forced to a number or
// NULL, since the remote column is typed.
func postgresValues(l *models.Listing) []any {
	values := l.Values()
	for i, c := range models.PersistedColumns {
		if columnKinds[c] == kindReal {
			if f := models.FloatPtr(values[i]); f != nil {
				values[i] = *f
			} else {
				values[i] = nil
			}
		}
	}
	return values
}
