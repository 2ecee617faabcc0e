package store

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog is returned when a catalog has no usable rows.
	ErrEmptyCatalog = errors.New("catalog is empty")

	// ErrInvalidQueryShape is returned when a query is not a flat vector of numbers.
	ErrInvalidQueryShape = errors.New("query must be a flat numeric vector")

	// ErrChecksumMismatch is returned when a loaded catalog does not match the expected checksum.
	ErrChecksumMismatch = errors.New("catalog checksum mismatch")
)

// SchemaError reports a malformed catalog record. Index is -1 when the
// document itself is not a list of records.
type SchemaError struct {
	Index  int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Index < 0 {
		return "catalog schema: " + e.Reason
	}
	return fmt.Sprintf("catalog schema: record %d: %s", e.Index, e.Reason)
}

// DimensionMismatchError is returned when a query has a different dimension
// than the catalog it is matched against.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("query dimension mismatch: expected %d got %d", e.Want, e.Got)
}

// InvalidOptionsError is returned for out-of-range per-request match options.
type InvalidOptionsError struct {
	Field  string
	Reason string
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Reason)
}

// IsLoadError reports whether err is a fatal catalog load failure, as opposed
// to an error scoped to a single request.
func IsLoadError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr) ||
		errors.Is(err, ErrEmptyCatalog) ||
		errors.Is(err, ErrChecksumMismatch)
}
