package query

import "errors"

var (
	// ErrUnknownOperator is returned for a token outside the operator vocabulary.
	ErrUnknownOperator = errors.New("query: unknown operator")

	// ErrUpdateOperatorInFilter is returned when a predicate carries an update operator.
	ErrUpdateOperatorInFilter = errors.New("query: update operator used in filter")

	// ErrFilterOperatorInUpdate is returned when a directive carries a filter operator.
	ErrFilterOperatorInUpdate = errors.New("query: filter operator used in update")

	// ErrInvalidValue is returned when a value does not fit its operator.
	ErrInvalidValue = errors.New("query: invalid value for operator")

	// ErrConflictingUpdate is returned when two directives touch the same attribute.
	ErrConflictingUpdate = errors.New("query: conflicting update directives")

	// ErrEmptyAttribute is returned for a predicate or directive without an attribute.
	ErrEmptyAttribute = errors.New("query: attribute cannot be empty")
)
