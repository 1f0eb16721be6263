package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSplitStringOperator(t *testing.T) {
	tests := []struct {
		operator    Operator
		base        Operator
		insensitive bool
	}{
		{OperatorContains, OperatorContains, false},
		{OperatorIContains, OperatorContains, true},
		{OperatorStartsWith, OperatorStartsWith, false},
		{OperatorIStartsWith, OperatorStartsWith, true},
		{OperatorEndsWith, OperatorEndsWith, false},
		{OperatorIEndsWith, OperatorEndsWith, true},
		{OperatorExact, OperatorExact, false},
		{OperatorIExact, OperatorExact, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.operator), func(t *testing.T) {
			base, insensitive, err := SplitStringOperator(tt.operator)
			require.NoError(t, err)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.insensitive, insensitive)
		})
	}

	_, _, err := SplitStringOperator(OperatorIn)
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, "plain", EscapePattern("plain"))
	assert.Equal(t, `a\.b`, EscapePattern("a.b"))
	assert.Equal(t, `\(a\|b\)`, EscapePattern("(a|b)"))
	assert.Equal(t, `\^\$\*\+\?\{\}\[\]\\`, EscapePattern(`^$*+?{}[]\`))
}

func TestAnchorPattern(t *testing.T) {
	tests := []struct {
		base     Operator
		expected string
	}{
		{OperatorContains, "v"},
		{OperatorStartsWith, "^v"},
		{OperatorEndsWith, "v$"},
		{OperatorExact, "^v$"},
	}
	for _, tt := range tests {
		t.Run(string(tt.base), func(t *testing.T) {
			got, err := AnchorPattern(tt.base, "v")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := AnchorPattern(OperatorIExact, "v")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestCompilePattern_StartsWith(t *testing.T) {
	p, err := CompilePattern(OperatorStartsWith, "ab")
	require.NoError(t, err)
	assert.Equal(t, "^ab", p.Expr)
	assert.False(t, p.CaseInsensitive)

	assert.True(t, p.MatchString("abc"))
	assert.True(t, p.MatchString("ab"))
	assert.False(t, p.MatchString("xab"))
	assert.False(t, p.MatchString("ABc"))
}

func TestCompilePattern_EndsWith(t *testing.T) {
	p, err := CompilePattern(OperatorIEndsWith, "Son")
	require.NoError(t, err)
	assert.Equal(t, "Son$", p.Expr)
	assert.True(t, p.MatchString("jackson"))
	assert.False(t, p.MatchString("sonny"))
}

func TestCompilePattern_IExact(t *testing.T) {
	p, err := CompilePattern(OperatorIExact, "AB")
	require.NoError(t, err)
	assert.Equal(t, "^AB$", p.Expr)
	assert.True(t, p.CaseInsensitive)

	for _, s := range []string{"ab", "AB", "Ab"} {
		assert.True(t, p.MatchString(s), s)
	}
	assert.False(t, p.MatchString("abc"))
	assert.False(t, p.MatchString("xab"))
}

func TestCompilePattern_ContainsIsLiteral(t *testing.T) {
	specials := []string{".", "*", "+", "?", "(", ")", "[", "]", "{", "}", "|", "^", "$", `\`}
	for _, c := range specials {
		t.Run(c, func(t *testing.T) {
			raw := "x" + c + "y"
			p, err := CompilePattern(OperatorContains, raw)
			require.NoError(t, err)

			assert.True(t, p.MatchString("--"+raw+"--"))
			assert.False(t, p.MatchString("--xZy--"))
		})
	}
}

func TestCompilePattern_NestedQuantifierIsLiteral(t *testing.T) {
	p, err := CompilePattern(OperatorExact, "(a+)+$")
	require.NoError(t, err)
	assert.True(t, p.MatchString("(a+)+$"))
	assert.False(t, p.MatchString("aaaa"))
}

func TestCompilePattern_RejectsNonStringOperator(t *testing.T) {
	_, err := CompilePattern(OperatorEq, "x")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestPattern_Regex(t *testing.T) {
	p, err := CompilePattern(OperatorIContains, "Jo")
	require.NoError(t, err)
	assert.Equal(t, primitive.Regex{Pattern: "Jo", Options: "i"}, p.Regex())

	p, err = CompilePattern(OperatorContains, "Jo")
	require.NoError(t, err)
	assert.Equal(t, primitive.Regex{Pattern: "Jo", Options: ""}, p.Regex())
}
