package sqlite

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Match reports whether doc satisfies the native filter document. It covers
// the logical, comparison, element, array and regex operators; geospatial
// operators yield ErrUnsupportedOperator.
func Match(doc map[string]any, filter map[string]any) (bool, error) {
	result := true
	for key, cond := range filter {
		ok, err := matchKey(doc, key, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			result = false
		}
	}
	return result, nil
}

func matchKey(doc map[string]any, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := toSlice(cond)
		if !ok || len(clauses) == 0 {
			return false, fmt.Errorf("%w: %s expects a non-empty array", ErrMalformedFilter, key)
		}
		matched := 0
		for _, c := range clauses {
			sub, ok := toDocument(c)
			if !ok {
				return false, fmt.Errorf("%w: %s clauses must be documents, got %T", ErrMalformedFilter, key, c)
			}
			ok, err := Match(doc, sub)
			if err != nil {
				return false, err
			}
			if ok {
				matched++
			}
		}
		switch key {
		case "$and":
			return matched == len(clauses), nil
		case "$or":
			return matched > 0, nil
		default:
			return matched == 0, nil
		}
	}

	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, key)
	}
	value, found := lookup(doc, key)
	return matchCondition(value, found, cond)
}

// matchCondition evaluates the value stored under one attribute of a filter.
func matchCondition(value any, found bool, cond any) (bool, error) {
	if re, ok := cond.(primitive.Regex); ok {
		return matchRegex(value, found, re.Pattern, re.Options)
	}
	if ops, ok := toDocument(cond); ok && persistence.IsOperatorDocument(ops) {
		return matchOperators(value, found, ops)
	}
	return matchEquals(value, found, cond), nil
}

func matchOperators(value any, found bool, ops map[string]any) (bool, error) {
	result := true
	for op, arg := range ops {
		ok, err := matchOperator(value, found, op, arg, ops)
		if err != nil {
			return false, err
		}
		if !ok {
			result = false
		}
	}
	return result, nil
}

func matchOperator(value any, found bool, op string, arg any, ops map[string]any) (bool, error) {
	switch op {
	case "$eq":
		return matchEquals(value, found, arg), nil
	case "$ne":
		return !matchEquals(value, found, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		return matchCompare(value, found, op, arg), nil
	case "$in", "$nin":
		candidates, ok := toSlice(arg)
		if !ok {
			return false, fmt.Errorf("%w: %s expects an array, got %T", ErrMalformedFilter, op, arg)
		}
		in := false
		for _, c := range candidates {
			var ok bool
			if re, isRegex := c.(primitive.Regex); isRegex {
				var err error
				if ok, err = matchRegex(value, found, re.Pattern, re.Options); err != nil {
					return false, err
				}
			} else {
				ok = matchEquals(value, found, c)
			}
			if ok {
				in = true
				break
			}
		}
		if op == "$in" {
			return in, nil
		}
		return !in, nil
	case "$exists":
		return found == truthy(arg), nil
	case "$regex":
		options, _ := ops["$options"].(string)
		switch p := arg.(type) {
		case string:
			return matchRegex(value, found, p, options)
		case primitive.Regex:
			if options == "" {
				options = p.Options
			}
			return matchRegex(value, found, p.Pattern, options)
		default:
			return false, fmt.Errorf("%w: $regex expects a string, got %T", ErrMalformedFilter, arg)
		}
	case "$options":
		if _, ok := ops["$regex"]; !ok {
			return false, fmt.Errorf("%w: $options without $regex", ErrMalformedFilter)
		}
		return true, nil
	case "$size":
		n, ok := query.ToFloat64(arg)
		if !ok || !query.IsNumber(arg) {
			return false, fmt.Errorf("%w: $size expects a number, got %T", ErrMalformedFilter, arg)
		}
		arr, isArray := toSlice(value)
		return found && isArray && float64(len(arr)) == n, nil
	case "$all":
		wanted, ok := toSlice(arg)
		if !ok {
			return false, fmt.Errorf("%w: $all expects an array, got %T", ErrMalformedFilter, arg)
		}
		if len(wanted) == 0 || !found {
			return false, nil
		}
		for _, w := range wanted {
			if !matchEquals(value, found, w) {
				return false, nil
			}
		}
		return true, nil
	case "$mod":
		return matchMod(value, found, arg)
	case "$not":
		if re, ok := arg.(primitive.Regex); ok {
			matched, err := matchRegex(value, found, re.Pattern, re.Options)
			return !matched, err
		}
		sub, ok := toDocument(arg)
		if !ok || !persistence.IsOperatorDocument(sub) {
			return false, fmt.Errorf("%w: $not expects an operator document or regex", ErrMalformedFilter)
		}
		matched, err := matchOperators(value, found, sub)
		return !matched, err
	case "$elemMatch":
		sub, ok := toDocument(arg)
		if !ok {
			return false, fmt.Errorf("%w: $elemMatch expects a document, got %T", ErrMalformedFilter, arg)
		}
		arr, isArray := toSlice(value)
		if !found || !isArray {
			return false, nil
		}
		for _, elem := range arr {
			var matched bool
			var err error
			if persistence.IsOperatorDocument(sub) {
				matched, err = matchOperators(elem, true, sub)
			} else if elemDoc, isDoc := toDocument(elem); isDoc {
				matched, err = Match(elemDoc, sub)
			}
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	default:
		// $near, $geoWithin and friends need a spatial index.
		return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

// matchEquals applies equality the way document stores do: a null operand
// also matches a missing attribute, and an array attribute matches when any
// element is equal.
func matchEquals(value any, found bool, want any) bool {
	if want == nil {
		return !found || value == nil
	}
	if !found {
		return false
	}
	if valuesEqual(value, want) {
		return true
	}
	if arr, ok := toSlice(value); ok {
		for _, elem := range arr {
			if valuesEqual(elem, want) {
				return true
			}
		}
	}
	return false
}

func matchCompare(value any, found bool, op string, want any) bool {
	if !found {
		return false
	}
	candidates := []any{value}
	if arr, ok := toSlice(value); ok {
		candidates = arr
	}
	for _, c := range candidates {
		cmp, ok := compareValues(c, want)
		if !ok {
			continue
		}
		switch {
		case op == "$gt" && cmp > 0,
			op == "$gte" && cmp >= 0,
			op == "$lt" && cmp < 0,
			op == "$lte" && cmp <= 0:
			return true
		}
	}
	return false
}

func matchMod(value any, found bool, arg any) (bool, error) {
	parts, ok := toSlice(arg)
	if !ok || len(parts) != 2 {
		return false, fmt.Errorf("%w: $mod expects [divisor, remainder]", ErrMalformedFilter)
	}
	divisor, ok1 := query.ToFloat64(parts[0])
	remainder, ok2 := query.ToFloat64(parts[1])
	if !ok1 || !ok2 || int64(divisor) == 0 {
		return false, fmt.Errorf("%w: $mod expects a non-zero numeric divisor", ErrMalformedFilter)
	}
	if !found {
		return false, nil
	}
	candidates := []any{value}
	if arr, ok := toSlice(value); ok {
		candidates = arr
	}
	for _, c := range candidates {
		if !query.IsNumber(c) {
			continue
		}
		n, _ := query.ToFloat64(c)
		if int64(n)%int64(divisor) == int64(remainder) {
			return true, nil
		}
	}
	return false, nil
}

// matchRegex matches string attributes, or any string element of an array
// attribute, against pattern. Options follow the store's flag letters.
func matchRegex(value any, found bool, pattern, options string) (bool, error) {
	re, err := compileRegex(pattern, options)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	candidates := []any{value}
	if arr, ok := toSlice(value); ok {
		candidates = arr
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok && re.MatchString(s) {
			return true, nil
		}
	}
	return false, nil
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	var flags strings.Builder
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags.WriteRune(o)
		default:
			return nil, fmt.Errorf("%w: regex option %q", ErrUnsupportedOperator, o)
		}
	}
	expr := pattern
	if flags.Len() > 0 {
		expr = "(?" + flags.String() + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFilter, err)
	}
	return re, nil
}

// valuesEqual compares numbers by value and everything else by its
// canonical JSON encoding, which is how documents are stored.
func valuesEqual(a, b any) bool {
	if x, ok := asInt64(a); ok {
		if y, ok := asInt64(b); ok {
			return x == y
		}
	}
	if query.IsNumber(a) && query.IsNumber(b) {
		x, _ := query.ToFloat64(a)
		y, _ := query.ToFloat64(b)
		return x == y
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	ja, err := json.Marshal(normalize(a))
	if err != nil {
		return false
	}
	jb, err := json.Marshal(normalize(b))
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// compareValues orders two values of the same kind. Times compare with
// RFC 3339 strings since that is their stored form.
func compareValues(a, b any) (int, bool) {
	if x, ok := asInt64(a); ok {
		if y, ok := asInt64(b); ok {
			return cmp.Compare(x, y), true
		}
	}
	if query.IsNumber(a) && query.IsNumber(b) {
		x, _ := query.ToFloat64(a)
		y, _ := query.ToFloat64(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	if t, ok := b.(time.Time); ok {
		s, isString := a.(string)
		if !isString {
			return 0, false
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return parsed.Compare(t), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// lookup resolves a dotted attribute path. Numeric segments index arrays;
// other segments applied to an array collect the attribute from each element.
func lookup(doc map[string]any, path string) (any, bool) {
	return resolve(doc, strings.Split(path, "."))
}

func resolve(current any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return current, true
	}
	if m, ok := toDocument(current); ok {
		next, ok := m[parts[0]]
		if !ok {
			return nil, false
		}
		return resolve(next, parts[1:])
	}
	if arr, ok := toSlice(current); ok {
		if idx, err := strconv.Atoi(parts[0]); err == nil {
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			return resolve(arr[idx], parts[1:])
		}
		var out []any
		for _, elem := range arr {
			if v, ok := resolve(elem, parts); ok {
				out = append(out, v)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func toDocument(v any) (map[string]any, bool) {
	switch d := v.(type) {
	case map[string]any:
		return d, true
	case bson.M:
		return d, true
	case persistence.Document:
		return d, true
	case bson.D:
		return d.Map(), true
	default:
		return nil, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case bson.A:
		return s, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// normalize rewrites ordered documents as maps so that equal documents
// encode identically.
func normalize(v any) any {
	if d, ok := v.(bson.D); ok {
		m := make(map[string]any, len(d))
		for _, e := range d {
			m[e.Key] = normalize(e.Value)
		}
		return m
	}
	return v
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	}
	if n, ok := query.ToFloat64(v); ok && query.IsNumber(v) {
		return n != 0
	}
	return true
}
