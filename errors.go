package lazypager

import "errors"

var (
	// ErrIndexOutOfRange is returned by IDByIndex when the page fetched at the
	// requested index comes back empty.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidRange is returned for negative offsets or counts.
	ErrInvalidRange = errors.New("invalid range")

	// ErrSortMismatch is returned when sort fields and directions differ in length.
	ErrSortMismatch = errors.New("sort fields and directions mismatch")

	// ErrNoSearchColumns is returned when a filter has no column to search.
	ErrNoSearchColumns = errors.New("no search columns configured")

	// ErrNoKey is returned when a membership check needs a key column that was never set.
	ErrNoKey = errors.New("no key column configured")

	// ErrNotComparable is returned by ContainsID for non-comparable items
	// without an identity getter.
	ErrNotComparable = errors.New("item type is not comparable, set an identity")
)
