package store

import "errors"

var (
	// ErrCallerConflict is returned when a caller name already exists
	ErrCallerConflict = errors.New("caller already exists")

	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmptyQuery is returned when a raw lookup query is blank
	ErrEmptyQuery = errors.New("query must not be empty")
)
