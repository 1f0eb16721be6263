package query

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pattern is a compiled string-match expression ready to embed in a filter.
type Pattern struct {
	Expr            string
	CaseInsensitive bool
}

// Options returns the store's flag string for the pattern.
func (p Pattern) Options() string {
	if p.CaseInsensitive {
		return "i"
	}
	return ""
}

// Regex returns the pattern as a native regular expression value.
func (p Pattern) Regex() primitive.Regex {
	return primitive.Regex{Pattern: p.Expr, Options: p.Options()}
}

// Compile builds a Go regular expression equivalent to the pattern.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	expr := p.Expr
	if p.CaseInsensitive {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// MatchString reports whether s matches the pattern.
func (p Pattern) MatchString(s string) bool {
	re, err := p.Compile()
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// SplitStringOperator separates the case-insensitivity marker from a
// string-pattern operator.
func SplitStringOperator(op Operator) (Operator, bool, error) {
	switch op {
	case OperatorContains, OperatorStartsWith, OperatorEndsWith, OperatorExact:
		return op, false, nil
	case OperatorIContains, OperatorIStartsWith, OperatorIEndsWith, OperatorIExact:
		return Operator(strings.TrimPrefix(string(op), "i")), true, nil
	default:
		return "", false, fmt.Errorf("%w: %q is not a string-pattern operator", ErrUnknownOperator, op)
	}
}

// EscapePattern escapes every regular-expression metacharacter in raw so it
// matches literally. The output is valid in both RE2 and PCRE.
func EscapePattern(raw string) string {
	return regexp.QuoteMeta(raw)
}

// AnchorPattern wraps an already escaped value in the anchors of base, which
// must be one of the case-sensitive string-pattern operators.
func AnchorPattern(base Operator, escaped string) (string, error) {
	switch base {
	case OperatorStartsWith:
		return "^" + escaped, nil
	case OperatorEndsWith:
		return escaped + "$", nil
	case OperatorExact:
		return "^" + escaped + "$", nil
	case OperatorContains:
		return escaped, nil
	default:
		return "", fmt.Errorf("%w: cannot anchor for %q", ErrUnknownOperator, base)
	}
}

// CompilePattern turns a string-pattern operator and a literal value into a
// safely escaped, anchored pattern.
func CompilePattern(op Operator, raw string) (Pattern, error) {
	base, insensitive, err := SplitStringOperator(op)
	if err != nil {
		return Pattern{}, err
	}
	expr, err := AnchorPattern(base, EscapePattern(raw))
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Expr: expr, CaseInsensitive: insensitive}, nil
}
