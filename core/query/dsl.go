// Package query defines the database-agnostic predicate vocabulary and the
// translation of predicates and update directives into MongoDB-style native
// documents. Everything in this package is pure: translators hold no mutable
// state and are safe for concurrent use.
package query

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Operator is a token of the generic operator vocabulary.
type Operator string

// Equality.
const (
	OperatorEq Operator = "eq"
)

// Comparison operators. Each one translates to the same name behind the
// store's "$" sigil.
const (
	OperatorNe     Operator = "ne"
	OperatorGt     Operator = "gt"
	OperatorGte    Operator = "gte"
	OperatorLt     Operator = "lt"
	OperatorLte    Operator = "lte"
	OperatorIn     Operator = "in"
	OperatorNin    Operator = "nin"
	OperatorMod    Operator = "mod"
	OperatorAll    Operator = "all"
	OperatorSize   Operator = "size"
	OperatorExists Operator = "exists"
	OperatorNot    Operator = "not"
)

// Geospatial operators.
const (
	OperatorWithinDistance          Operator = "within_distance"
	OperatorWithinSphericalDistance Operator = "within_spherical_distance"
	OperatorWithinBox               Operator = "within_box"
	OperatorWithinPolygon           Operator = "within_polygon"
	OperatorNear                    Operator = "near"
	OperatorNearSphere              Operator = "near_sphere"
	OperatorMaxDistance             Operator = "max_distance"
	OperatorGeoWithin               Operator = "geo_within"
	OperatorGeoWithinBox            Operator = "geo_within_box"
	OperatorGeoWithinPolygon        Operator = "geo_within_polygon"
	OperatorGeoWithinCenter         Operator = "geo_within_center"
	OperatorGeoWithinSphere         Operator = "geo_within_sphere"
	OperatorGeoIntersects           Operator = "geo_intersects"
)

// String-pattern operators. The "i" variants match case-insensitively.
const (
	OperatorContains    Operator = "contains"
	OperatorIContains   Operator = "icontains"
	OperatorStartsWith  Operator = "startswith"
	OperatorIStartsWith Operator = "istartswith"
	OperatorEndsWith    Operator = "endswith"
	OperatorIEndsWith   Operator = "iendswith"
	OperatorExact       Operator = "exact"
	OperatorIExact      Operator = "iexact"
)

// OperatorMatch embeds a native sub-document at the attribute unchanged.
const (
	OperatorMatch Operator = "match"
)

// Update operators. They are only valid in directives.
const (
	OperatorSet         Operator = "set"
	OperatorUnset       Operator = "unset"
	OperatorInc         Operator = "inc"
	OperatorDec         Operator = "dec"
	OperatorPop         Operator = "pop"
	OperatorPush        Operator = "push"
	OperatorPushAll     Operator = "push_all"
	OperatorPull        Operator = "pull"
	OperatorPullAll     Operator = "pull_all"
	OperatorAddToSet    Operator = "add_to_set"
	OperatorSetOnInsert Operator = "set_on_insert"
)

// Category groups operators that share a translation strategy.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryEquality
	CategoryComparison
	CategoryGeospatial
	CategoryStringPattern
	CategoryCustom
	CategoryUpdate
)

func (c Category) String() string {
	switch c {
	case CategoryEquality:
		return "equality"
	case CategoryComparison:
		return "comparison"
	case CategoryGeospatial:
		return "geospatial"
	case CategoryStringPattern:
		return "string-pattern"
	case CategoryCustom:
		return "custom"
	case CategoryUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Category reports the translation category of the operator.
func (o Operator) Category() Category {
	switch o {
	case OperatorEq:
		return CategoryEquality
	case OperatorNe, OperatorGt, OperatorGte, OperatorLt, OperatorLte,
		OperatorIn, OperatorNin, OperatorMod, OperatorAll, OperatorSize,
		OperatorExists, OperatorNot:
		return CategoryComparison
	case OperatorWithinDistance, OperatorWithinSphericalDistance,
		OperatorWithinBox, OperatorWithinPolygon, OperatorNear,
		OperatorNearSphere, OperatorMaxDistance, OperatorGeoWithin,
		OperatorGeoWithinBox, OperatorGeoWithinPolygon,
		OperatorGeoWithinCenter, OperatorGeoWithinSphere,
		OperatorGeoIntersects:
		return CategoryGeospatial
	case OperatorContains, OperatorIContains, OperatorStartsWith,
		OperatorIStartsWith, OperatorEndsWith, OperatorIEndsWith,
		OperatorExact, OperatorIExact:
		return CategoryStringPattern
	case OperatorMatch:
		return CategoryCustom
	case OperatorSet, OperatorUnset, OperatorInc, OperatorDec, OperatorPop,
		OperatorPush, OperatorPushAll, OperatorPull, OperatorPullAll,
		OperatorAddToSet, OperatorSetOnInsert:
		return CategoryUpdate
	default:
		return CategoryUnknown
	}
}

// IsFilter reports whether the operator may appear in a predicate.
func (o Operator) IsFilter() bool {
	switch o.Category() {
	case CategoryUnknown, CategoryUpdate:
		return false
	default:
		return true
	}
}

// IsUpdate reports whether the operator may appear in a directive.
func (o Operator) IsUpdate() bool {
	return o.Category() == CategoryUpdate
}

// ParseOperator validates a raw operator token.
func ParseOperator(raw string) (Operator, error) {
	op := Operator(raw)
	if op.Category() == CategoryUnknown {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, raw)
	}
	return op, nil
}

// Predicate is a single attribute/operator/value query condition.
type Predicate struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value" yaml:"value"`
}

// NewPredicate creates a predicate.
func NewPredicate(attribute string, operator Operator, value any) Predicate {
	return Predicate{Attribute: attribute, Operator: operator, Value: value}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Attribute, p.Operator, p.Value)
}

// Directive is a single update mutation applied to an attribute.
type Directive struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value" yaml:"value"`
}

// NewDirective creates an update directive.
func NewDirective(attribute string, operator Operator, value any) Directive {
	return Directive{Attribute: attribute, Operator: operator, Value: value}
}

// Filter is a native filter document.
type Filter = bson.M

// Update is a native update document.
type Update = bson.M
