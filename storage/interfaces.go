package storage

import (
	"context"

	"rental-sync/models"
)

// TableName is the durable listings table in both stores.
const TableName = "properties_data"

// LocalStore is the file-backed store that accumulates every listing seen
// and fills enrichment columns once.
type LocalStore interface {
	// Merge inserts unseen ids and fills NULL enrichment columns from
	// listings in one transaction, returning the number of distinct
	// listings inserted or updated.
	Merge(ctx context.Context, listings []*models.Listing) (int64, error)
	LoadAll(ctx context.Context) ([]*models.Listing, error)
	Reset(ctx context.Context) error
	Close() error
}

// RemoteStore is the shared store that only ever receives new ids.
type RemoteStore interface {
	EnsureSchema(ctx context.Context) error
	ExistingIDs(ctx context.Context) ([]string, error)
	// Insert adds listings whose id is not yet stored and never updates an
	// existing row. It returns the number of rows inserted.
	Insert(ctx context.Context, listings []*models.Listing) (int64, error)
	Reset(ctx context.Context) error
	Close() error
}

// RowWriter exports cleaned rows.
type RowWriter interface {
	WriteRows(rows []models.Row) error
	Close() error
}
