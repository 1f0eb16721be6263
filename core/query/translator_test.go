package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTranslator_Translate(t *testing.T) {
	tr := NewTranslator(nil, nil)

	tests := []struct {
		name       string
		predicates []Predicate
		expected   Filter
	}{
		{
			name:       "equality",
			predicates: []Predicate{NewPredicate("age", OperatorEq, 30)},
			expected:   Filter{"age": 30},
		},
		{
			name:       "comparison",
			predicates: []Predicate{NewPredicate("age", OperatorGte, 18)},
			expected:   Filter{"age": bson.M{"$gte": 18}},
		},
		{
			name:       "set membership",
			predicates: []Predicate{NewPredicate("tags", OperatorIn, []any{"a", "b"})},
			expected:   Filter{"tags": bson.M{"$in": []any{"a", "b"}}},
		},
		{
			name:       "exists",
			predicates: []Predicate{NewPredicate("email", OperatorExists, false)},
			expected:   Filter{"email": bson.M{"$exists": false}},
		},
		{
			name:       "case-insensitive contains",
			predicates: []Predicate{NewPredicate("name", OperatorIContains, "Jo")},
			expected:   Filter{"name": bson.M{"$regex": primitive.Regex{Pattern: "Jo", Options: "i"}}},
		},
		{
			name:       "escaped exact",
			predicates: []Predicate{NewPredicate("path", OperatorExact, "a.b")},
			expected:   Filter{"path": bson.M{"$regex": primitive.Regex{Pattern: `^a\.b$`}}},
		},
		{
			name:       "match passes document through",
			predicates: []Predicate{NewPredicate("score", OperatorMatch, bson.M{"$gt": 1, "$lt": 5})},
			expected:   Filter{"score": bson.M{"$gt": 1, "$lt": 5}},
		},
		{
			name:       "near",
			predicates: []Predicate{NewPredicate("loc", OperatorNear, []float64{1, 2})},
			expected:   Filter{"loc": bson.M{"$near": []float64{1, 2}}},
		},
		{
			name:       "within box",
			predicates: []Predicate{NewPredicate("loc", OperatorWithinBox, [][]float64{{0, 0}, {1, 1}})},
			expected:   Filter{"loc": bson.M{"$geoWithin": bson.M{"$box": [][]float64{{0, 0}, {1, 1}}}}},
		},
		{
			name: "distinct attributes combine",
			predicates: []Predicate{
				NewPredicate("age", OperatorGt, 21),
				NewPredicate("active", OperatorEq, true),
			},
			expected: Filter{"age": bson.M{"$gt": 21}, "active": true},
		},
		{
			name:       "no predicates",
			predicates: nil,
			expected:   Filter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tr.Translate(tt.predicates...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, filter)
		})
	}
}

func TestTranslator_DuplicateAttributesConjoin(t *testing.T) {
	tr := NewTranslator(nil, nil)

	filter, err := tr.Translate(
		NewPredicate("x", OperatorEq, 1),
		NewPredicate("x", OperatorEq, 2),
	)
	require.NoError(t, err)
	assert.Equal(t, Filter{"$and": bson.A{bson.M{"x": 1}, bson.M{"x": 2}}}, filter)

	filter, err = tr.Translate(
		NewPredicate("age", OperatorGte, 18),
		NewPredicate("name", OperatorEq, "ann"),
		NewPredicate("age", OperatorLt, 65),
	)
	require.NoError(t, err)
	assert.Equal(t, Filter{
		"name": "ann",
		"$and": bson.A{
			bson.M{"age": bson.M{"$gte": 18}},
			bson.M{"age": bson.M{"$lt": 65}},
		},
	}, filter)
}

func TestTranslator_OverwriteDuplicates(t *testing.T) {
	tr := NewTranslator(nil, &TranslatorOptions{OverwriteDuplicates: true})

	filter, err := tr.Translate(
		NewPredicate("x", OperatorEq, 1),
		NewPredicate("x", OperatorEq, 2),
	)
	require.NoError(t, err)
	assert.Equal(t, Filter{"x": 2}, filter)
}

func TestTranslator_Errors(t *testing.T) {
	tr := NewTranslator(nil, nil)

	tests := []struct {
		name      string
		predicate Predicate
		expected  error
	}{
		{"unknown operator", NewPredicate("a", Operator("like"), "x"), ErrUnknownOperator},
		{"update operator", NewPredicate("a", OperatorSet, 1), ErrUpdateOperatorInFilter},
		{"pattern with number", NewPredicate("a", OperatorContains, 12), ErrInvalidValue},
		{"match with scalar", NewPredicate("a", OperatorMatch, 12), ErrInvalidValue},
		{"empty attribute", NewPredicate("", OperatorEq, 1), ErrEmptyAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tr.Translate(NewPredicate("ok", OperatorEq, 1), tt.predicate)
			assert.Nil(t, filter)
			assert.ErrorIs(t, err, tt.expected)
			assert.Contains(t, err.Error(), "predicate 1")
		})
	}
}

func TestTranslator_TranslateUpdate(t *testing.T) {
	tr := NewTranslator(nil, nil)

	update, err := tr.TranslateUpdate(
		NewDirective("name", OperatorSet, "ann"),
		NewDirective("legacy", OperatorUnset, nil),
		NewDirective("visits", OperatorInc, 1),
		NewDirective("credits", OperatorDec, 5),
		NewDirective("queue", OperatorPop, -1),
		NewDirective("tags", OperatorPush, "new"),
		NewDirective("log", OperatorPushAll, []any{"a", "b"}),
		NewDirective("blocked", OperatorPull, "bob"),
		NewDirective("old", OperatorPullAll, []any{1, 2}),
		NewDirective("roles", OperatorAddToSet, "admin"),
		NewDirective("created", OperatorSetOnInsert, "today"),
	)
	require.NoError(t, err)

	assert.Equal(t, Update{
		"$set":         bson.M{"name": "ann"},
		"$unset":       bson.M{"legacy": ""},
		"$inc":         bson.M{"visits": 1, "credits": -5},
		"$pop":         bson.M{"queue": -1},
		"$push":        bson.M{"tags": "new", "log": bson.M{"$each": []any{"a", "b"}}},
		"$pull":        bson.M{"blocked": "bob"},
		"$pullAll":     bson.M{"old": []any{1, 2}},
		"$addToSet":    bson.M{"roles": "admin"},
		"$setOnInsert": bson.M{"created": "today"},
	}, update)
}

func TestTranslator_TranslateUpdateErrors(t *testing.T) {
	tr := NewTranslator(nil, nil)

	tests := []struct {
		name       string
		directives []Directive
		expected   error
	}{
		{"filter operator", []Directive{NewDirective("a", OperatorGt, 1)}, ErrFilterOperatorInUpdate},
		{"unknown operator", []Directive{NewDirective("a", Operator("rename"), "b")}, ErrUnknownOperator},
		{"inc with string", []Directive{NewDirective("a", OperatorInc, "1")}, ErrInvalidValue},
		{"dec with bool", []Directive{NewDirective("a", OperatorDec, true)}, ErrInvalidValue},
		{"dec past uint64 range", []Directive{NewDirective("n", OperatorDec, uint64(math.MaxUint64))}, ErrInvalidValue},
		{"dec of min int64", []Directive{NewDirective("n", OperatorDec, int64(math.MinInt64))}, ErrInvalidValue},
		{"push_all with scalar", []Directive{NewDirective("a", OperatorPushAll, 1)}, ErrInvalidValue},
		{"pull_all with nil", []Directive{NewDirective("a", OperatorPullAll, nil)}, ErrInvalidValue},
		{"empty attribute", []Directive{NewDirective("", OperatorSet, 1)}, ErrEmptyAttribute},
		{
			"same attribute twice",
			[]Directive{NewDirective("a", OperatorSet, 1), NewDirective("a", OperatorInc, 1)},
			ErrConflictingUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := tr.TranslateUpdate(tt.directives...)
			assert.Nil(t, update)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestTranslator_ConcurrentUse(t *testing.T) {
	tr := NewTranslator(nil, nil)
	done := make(chan Filter, 8)

	for i := 0; i < 8; i++ {
		go func(n int) {
			f, err := tr.Translate(NewPredicate("n", OperatorGte, n))
			if err != nil {
				done <- nil
				return
			}
			done <- f
		}(i)
	}

	for i := 0; i < 8; i++ {
		f := <-done
		require.NotNil(t, f)
		assert.Len(t, f, 1)
	}
}
