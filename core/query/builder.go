package query

import (
	"fmt"
	"strings"
)

// QueryBuilder provides a fluent API for assembling a predicate sequence.
// Predicates keep the order in which they were added.
type QueryBuilder struct {
	predicates []Predicate
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build returns a copy of the predicates added so far.
func (qb *QueryBuilder) Build() []Predicate {
	out := make([]Predicate, len(qb.predicates))
	copy(out, qb.predicates)
	return out
}

// Clone creates an independent copy of the builder.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	return &QueryBuilder{predicates: qb.Build()}
}

// Reset clears all predicates from the builder.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.predicates = nil
	return qb
}

// Add appends a raw predicate.
func (qb *QueryBuilder) Add(p Predicate) *QueryBuilder {
	qb.predicates = append(qb.predicates, p)
	return qb
}

// Where begins a predicate on the given attribute.
func (qb *QueryBuilder) Where(attribute string) *ConditionBuilder {
	return &ConditionBuilder{parent: qb, attribute: attribute}
}

// ConditionBuilder completes a predicate started with Where.
type ConditionBuilder struct {
	parent    *QueryBuilder
	attribute string
}

// Eq adds an equality predicate.
func (cb *ConditionBuilder) Eq(value any) *QueryBuilder { return cb.add(OperatorEq, value) }

// Ne adds a not-equal predicate.
func (cb *ConditionBuilder) Ne(value any) *QueryBuilder { return cb.add(OperatorNe, value) }

// Gt adds a greater-than predicate.
func (cb *ConditionBuilder) Gt(value any) *QueryBuilder { return cb.add(OperatorGt, value) }

// Gte adds a greater-than-or-equal predicate.
func (cb *ConditionBuilder) Gte(value any) *QueryBuilder { return cb.add(OperatorGte, value) }

// Lt adds a less-than predicate.
func (cb *ConditionBuilder) Lt(value any) *QueryBuilder { return cb.add(OperatorLt, value) }

// Lte adds a less-than-or-equal predicate.
func (cb *ConditionBuilder) Lte(value any) *QueryBuilder { return cb.add(OperatorLte, value) }

// In adds a set-membership predicate.
func (cb *ConditionBuilder) In(values ...any) *QueryBuilder { return cb.add(OperatorIn, values) }

// Nin adds a set-exclusion predicate.
func (cb *ConditionBuilder) Nin(values ...any) *QueryBuilder { return cb.add(OperatorNin, values) }

// All requires an array attribute to contain every value.
func (cb *ConditionBuilder) All(values ...any) *QueryBuilder { return cb.add(OperatorAll, values) }

// Size requires an array attribute to have exactly n elements.
func (cb *ConditionBuilder) Size(n int) *QueryBuilder { return cb.add(OperatorSize, n) }

// Mod requires attribute % divisor == remainder.
func (cb *ConditionBuilder) Mod(divisor, remainder int) *QueryBuilder {
	return cb.add(OperatorMod, []any{divisor, remainder})
}

// Exists adds a predicate on the presence of the attribute.
func (cb *ConditionBuilder) Exists(present bool) *QueryBuilder { return cb.add(OperatorExists, present) }

// Contains matches values containing s, case-sensitively.
func (cb *ConditionBuilder) Contains(s string) *QueryBuilder { return cb.add(OperatorContains, s) }

// IContains matches values containing s, ignoring case.
func (cb *ConditionBuilder) IContains(s string) *QueryBuilder { return cb.add(OperatorIContains, s) }

// StartsWith matches values beginning with s.
func (cb *ConditionBuilder) StartsWith(s string) *QueryBuilder { return cb.add(OperatorStartsWith, s) }

// IStartsWith matches values beginning with s, ignoring case.
func (cb *ConditionBuilder) IStartsWith(s string) *QueryBuilder {
	return cb.add(OperatorIStartsWith, s)
}

// EndsWith matches values ending with s.
func (cb *ConditionBuilder) EndsWith(s string) *QueryBuilder { return cb.add(OperatorEndsWith, s) }

// IEndsWith matches values ending with s, ignoring case.
func (cb *ConditionBuilder) IEndsWith(s string) *QueryBuilder { return cb.add(OperatorIEndsWith, s) }

// Exact matches values equal to s as a whole string.
func (cb *ConditionBuilder) Exact(s string) *QueryBuilder { return cb.add(OperatorExact, s) }

// IExact matches values equal to s, ignoring case.
func (cb *ConditionBuilder) IExact(s string) *QueryBuilder { return cb.add(OperatorIExact, s) }

// Match embeds a native sub-document at the attribute.
func (cb *ConditionBuilder) Match(document map[string]any) *QueryBuilder {
	return cb.add(OperatorMatch, document)
}

// Custom adds a predicate with an arbitrary operator.
func (cb *ConditionBuilder) Custom(operator Operator, value any) *QueryBuilder {
	return cb.add(operator, value)
}

func (cb *ConditionBuilder) add(operator Operator, value any) *QueryBuilder {
	return cb.parent.Add(NewPredicate(cb.attribute, operator, value))
}

// ValidationError describes a problem with one built predicate or directive.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

// Error returns the error message for a ValidationError.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error at %d (%s): %s", ve.Index, ve.Field, ve.Message)
}

// ValidationResult contains the results of a builder validation.
type ValidationResult struct {
	IsValid bool
	Errors  []ValidationError
}

// Validate checks every predicate for an attribute and a filter operator.
func (qb *QueryBuilder) Validate() ValidationResult {
	var errs []ValidationError
	for i, p := range qb.predicates {
		if p.Attribute == "" {
			errs = append(errs, ValidationError{Index: i, Field: "attribute", Message: "attribute cannot be empty"})
		}
		if !p.Operator.IsFilter() {
			errs = append(errs, ValidationError{
				Index:   i,
				Field:   "operator",
				Message: fmt.Sprintf("%q is not a filter operator", p.Operator),
			})
		}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// String returns a human-readable representation of the predicates.
func (qb *QueryBuilder) String() string {
	if len(qb.predicates) == 0 {
		return "EMPTY QUERY"
	}
	parts := make([]string, len(qb.predicates))
	for i, p := range qb.predicates {
		parts[i] = p.String()
	}
	return strings.Join(parts, " AND ")
}

// UpdateBuilder provides a fluent API for assembling update directives.
type UpdateBuilder struct {
	directives []Directive
}

// NewUpdateBuilder creates a new, empty update builder.
func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{}
}

// Build returns a copy of the directives added so far.
func (ub *UpdateBuilder) Build() []Directive {
	out := make([]Directive, len(ub.directives))
	copy(out, ub.directives)
	return out
}

func (ub *UpdateBuilder) add(attribute string, operator Operator, value any) *UpdateBuilder {
	ub.directives = append(ub.directives, NewDirective(attribute, operator, value))
	return ub
}

// Set assigns value to the attribute.
func (ub *UpdateBuilder) Set(attribute string, value any) *UpdateBuilder {
	return ub.add(attribute, OperatorSet, value)
}

// Unset removes the attribute.
func (ub *UpdateBuilder) Unset(attribute string) *UpdateBuilder {
	return ub.add(attribute, OperatorUnset, "")
}

// Inc increments a numeric attribute.
func (ub *UpdateBuilder) Inc(attribute string, by any) *UpdateBuilder {
	return ub.add(attribute, OperatorInc, by)
}

// Dec decrements a numeric attribute.
func (ub *UpdateBuilder) Dec(attribute string, by any) *UpdateBuilder {
	return ub.add(attribute, OperatorDec, by)
}

// PopLast removes the last element of an array attribute.
func (ub *UpdateBuilder) PopLast(attribute string) *UpdateBuilder {
	return ub.add(attribute, OperatorPop, 1)
}

// PopFirst removes the first element of an array attribute.
func (ub *UpdateBuilder) PopFirst(attribute string) *UpdateBuilder {
	return ub.add(attribute, OperatorPop, -1)
}

// Push appends value to an array attribute.
func (ub *UpdateBuilder) Push(attribute string, value any) *UpdateBuilder {
	return ub.add(attribute, OperatorPush, value)
}

// PushAll appends every value to an array attribute.
func (ub *UpdateBuilder) PushAll(attribute string, values ...any) *UpdateBuilder {
	return ub.add(attribute, OperatorPushAll, values)
}

// Pull removes every occurrence of value from an array attribute.
func (ub *UpdateBuilder) Pull(attribute string, value any) *UpdateBuilder {
	return ub.add(attribute, OperatorPull, value)
}

// PullAll removes every occurrence of each value from an array attribute.
func (ub *UpdateBuilder) PullAll(attribute string, values ...any) *UpdateBuilder {
	return ub.add(attribute, OperatorPullAll, values)
}

// AddToSet appends value to an array attribute unless already present.
func (ub *UpdateBuilder) AddToSet(attribute string, value any) *UpdateBuilder {
	return ub.add(attribute, OperatorAddToSet, value)
}

// SetOnInsert assigns value only when the write inserts a new document.
func (ub *UpdateBuilder) SetOnInsert(attribute string, value any) *UpdateBuilder {
	return ub.add(attribute, OperatorSetOnInsert, value)
}
