package query

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// OperatorSigil prefixes every native operator token.
const OperatorSigil = "$"

// TranslatorOptions configures a Translator.
type TranslatorOptions struct {
	// OverwriteDuplicates makes a later predicate on an attribute replace an
	// earlier one instead of combining both under "$and". Only useful for
	// compatibility with filters produced by older clients.
	OverwriteDuplicates bool
}

// DefaultTranslatorOptions returns the options used when none are given.
func DefaultTranslatorOptions() *TranslatorOptions {
	return &TranslatorOptions{}
}

// Translator converts predicates into filter documents and directives into
// update documents.
type Translator struct {
	logger  *zap.Logger
	options *TranslatorOptions
}

// NewTranslator creates a translator. A nil logger or options fall back to
// a no-op logger and DefaultTranslatorOptions.
func NewTranslator(logger *zap.Logger, options *TranslatorOptions) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultTranslatorOptions()
	}
	return &Translator{logger: logger, options: options}
}

type clause struct {
	attribute string
	value     any
}

// Translate converts predicates into a filter document. Predicates are
// processed in order; predicates on distinct attributes combine by implicit
// conjunction, and repeated attributes are combined under "$and".
func (t *Translator) Translate(predicates ...Predicate) (Filter, error) {
	clauses := make([]clause, 0, len(predicates))
	seen := make(map[string]int, len(predicates))

	for i, p := range predicates {
		value, err := t.translatePredicate(p)
		if err != nil {
			return nil, fmt.Errorf("predicate %d (%s): %w", i, p.Attribute, err)
		}
		clauses = append(clauses, clause{attribute: p.Attribute, value: value})
		seen[p.Attribute]++
	}

	filter := Filter{}
	var conjunction bson.A
	for _, c := range clauses {
		if t.options.OverwriteDuplicates || seen[c.attribute] == 1 {
			filter[c.attribute] = c.value
			continue
		}
		conjunction = append(conjunction, bson.M{c.attribute: c.value})
	}
	if len(conjunction) > 0 {
		filter["$and"] = conjunction
	}

	t.logger.Debug("Translated predicates", zap.Int("predicates", len(predicates)), zap.Any("filter", filter))
	return filter, nil
}

// translatePredicate returns the value stored under the predicate's attribute.
func (t *Translator) translatePredicate(p Predicate) (any, error) {
	if p.Attribute == "" {
		return nil, ErrEmptyAttribute
	}

	switch p.Operator.Category() {
	case CategoryEquality:
		return p.Value, nil
	case CategoryComparison:
		return bson.M{OperatorSigil + string(p.Operator): p.Value}, nil
	case CategoryGeospatial:
		return geoClause(p.Operator, p.Value), nil
	case CategoryStringPattern:
		raw, ok := p.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, p.Operator, p.Value)
		}
		pattern, err := CompilePattern(p.Operator, raw)
		if err != nil {
			return nil, err
		}
		return bson.M{"$regex": pattern.Regex()}, nil
	case CategoryCustom:
		if !isDocument(p.Value) {
			return nil, fmt.Errorf("%w: %s expects a document, got %T", ErrInvalidValue, p.Operator, p.Value)
		}
		return p.Value, nil
	case CategoryUpdate:
		return nil, fmt.Errorf("%w: %s", ErrUpdateOperatorInFilter, p.Operator)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, p.Operator)
	}
}

// geoClause maps a geospatial operator onto the store's geospatial query
// operators. Shape operators are expressed through $geoWithin.
func geoClause(op Operator, value any) bson.M {
	switch op {
	case OperatorWithinBox, OperatorGeoWithinBox:
		return bson.M{"$geoWithin": bson.M{"$box": value}}
	case OperatorWithinPolygon, OperatorGeoWithinPolygon:
		return bson.M{"$geoWithin": bson.M{"$polygon": value}}
	case OperatorWithinDistance, OperatorGeoWithinCenter:
		return bson.M{"$geoWithin": bson.M{"$center": value}}
	case OperatorWithinSphericalDistance, OperatorGeoWithinSphere:
		return bson.M{"$geoWithin": bson.M{"$centerSphere": value}}
	case OperatorNear:
		return bson.M{"$near": value}
	case OperatorNearSphere:
		return bson.M{"$nearSphere": value}
	case OperatorMaxDistance:
		return bson.M{"$maxDistance": value}
	case OperatorGeoWithin:
		return bson.M{"$geoWithin": value}
	default: // OperatorGeoIntersects
		return bson.M{"$geoIntersects": value}
	}
}

// updateToken maps an update operator to its native token.
func updateToken(op Operator) string {
	switch op {
	case OperatorSet:
		return "$set"
	case OperatorUnset:
		return "$unset"
	case OperatorInc, OperatorDec:
		return "$inc"
	case OperatorPop:
		return "$pop"
	case OperatorPush, OperatorPushAll:
		return "$push"
	case OperatorPull:
		return "$pull"
	case OperatorPullAll:
		return "$pullAll"
	case OperatorAddToSet:
		return "$addToSet"
	default: // OperatorSetOnInsert
		return "$setOnInsert"
	}
}

// TranslateUpdate converts directives into an update document grouped by
// native update operator.
func (t *Translator) TranslateUpdate(directives ...Directive) (Update, error) {
	update := Update{}
	touched := make(map[string]Operator, len(directives))

	for i, d := range directives {
		if d.Attribute == "" {
			return nil, fmt.Errorf("directive %d: %w", i, ErrEmptyAttribute)
		}
		if !d.Operator.IsUpdate() {
			if d.Operator.Category() == CategoryUnknown {
				return nil, fmt.Errorf("directive %d (%s): %w: %q", i, d.Attribute, ErrUnknownOperator, d.Operator)
			}
			return nil, fmt.Errorf("directive %d (%s): %w: %s", i, d.Attribute, ErrFilterOperatorInUpdate, d.Operator)
		}
		if prev, ok := touched[d.Attribute]; ok {
			return nil, fmt.Errorf("directive %d (%s): %w: already modified by %s", i, d.Attribute, ErrConflictingUpdate, prev)
		}
		touched[d.Attribute] = d.Operator

		value, err := updateValue(d)
		if err != nil {
			return nil, fmt.Errorf("directive %d (%s): %w", i, d.Attribute, err)
		}

		token := updateToken(d.Operator)
		group, ok := update[token].(bson.M)
		if !ok {
			group = bson.M{}
			update[token] = group
		}
		group[d.Attribute] = value
	}

	t.logger.Debug("Translated directives", zap.Int("directives", len(directives)), zap.Any("update", update))
	return update, nil
}

func updateValue(d Directive) (any, error) {
	switch d.Operator {
	case OperatorUnset:
		return "", nil
	case OperatorInc:
		if !IsNumber(d.Value) {
			return nil, fmt.Errorf("%w: %s expects a number, got %T", ErrInvalidValue, d.Operator, d.Value)
		}
		return d.Value, nil
	case OperatorDec:
		negated, ok := Negate(d.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a number with a representable negation, got %T(%v)", ErrInvalidValue, d.Operator, d.Value, d.Value)
		}
		return negated, nil
	case OperatorPushAll:
		if !isSequence(d.Value) {
			return nil, fmt.Errorf("%w: %s expects a sequence, got %T", ErrInvalidValue, d.Operator, d.Value)
		}
		return bson.M{"$each": d.Value}, nil
	case OperatorPullAll:
		if !isSequence(d.Value) {
			return nil, fmt.Errorf("%w: %s expects a sequence, got %T", ErrInvalidValue, d.Operator, d.Value)
		}
		return d.Value, nil
	default:
		return d.Value, nil
	}
}

func isDocument(v any) bool {
	switch v.(type) {
	case bson.M, map[string]any, bson.D:
		return true
	default:
		return false
	}
}

func isSequence(v any) bool {
	if v == nil {
		return false
	}
	kind := reflect.TypeOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
