package sqlite

import "errors"

var (
	// ErrUnsupportedOperator is returned for filter or update operators the
	// embedded store cannot evaluate, such as the geospatial ones.
	ErrUnsupportedOperator = errors.New("sqlite: unsupported operator")

	// ErrMalformedFilter is returned when an operator argument has the wrong shape.
	ErrMalformedFilter = errors.New("sqlite: malformed filter")

	// ErrMalformedUpdate is returned when an update cannot be applied to a document.
	ErrMalformedUpdate = errors.New("sqlite: malformed update")

	// ErrImmutableKey is returned when an update would change a document's primary key.
	ErrImmutableKey = errors.New("sqlite: primary key is immutable")
)
