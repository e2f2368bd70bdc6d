package models

import "fmt"

// ResolutionError reports a failed or malformed typeahead lookup.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve location %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PageFetchError reports the search page that aborted a fetch.
type PageFetchError struct {
	LocationID string
	Offset     int
	Err        error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetch page at offset %d for %s: %v", e.Offset, e.LocationID, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// SchemaError reports a raw record that lacks a column the cleaner projects.
// It means the upstream payload changed shape, not that the data is bad.
type SchemaError struct {
	Index  int
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("record %d: missing column %q", e.Index, e.Column)
}
