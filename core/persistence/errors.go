package persistence

import "errors"

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("persistence: document not found")

	// ErrKeyExists is returned when an insert violates a uniqueness constraint
	// enforced by the store.
	ErrKeyExists = errors.New("persistence: key already exists")

	// ErrNilDriver is returned when a Storage is created without a driver.
	ErrNilDriver = errors.New("persistence: driver cannot be nil")

	// ErrNilSchema is returned when a Storage is created without a schema.
	ErrNilSchema = errors.New("persistence: schema cannot be nil")
)
