package sqlite

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/query"
)

// fieldUpdate is one operator applied to one path.
type fieldUpdate struct {
	op, path string
	value    any
}

// applyUpdate applies an operator update document to doc in place. Paths are
// applied in a fixed order, and two paths where one equals or contains the
// other are rejected, as MongoDB does.
func applyUpdate(doc map[string]any, update map[string]any) error {
	var updates []fieldUpdate
	for op, arg := range update {
		fields, ok := toDocument(arg)
		if !ok {
			return fmt.Errorf("%w: %s expects a document, got %T", ErrMalformedUpdate, op, arg)
		}
		for path, value := range fields {
			updates = append(updates, fieldUpdate{op: op, path: path, value: value})
		}
	}
	sort.Slice(updates, func(i, j int) bool {
		if updates[i].path != updates[j].path {
			return updates[i].path < updates[j].path
		}
		return updates[i].op < updates[j].op
	})

	for i, outer := range updates {
		for _, inner := range updates[i+1:] {
			if pathsOverlap(outer.path, inner.path) {
				return fmt.Errorf("%w: %s %s conflicts with %s %s", ErrMalformedUpdate, outer.op, outer.path, inner.op, inner.path)
			}
		}
	}

	for _, u := range updates {
		if err := applyField(doc, u.op, u.path, u.value); err != nil {
			return fmt.Errorf("%s %s: %w", u.op, u.path, err)
		}
	}
	return nil
}

// pathsOverlap reports whether a and b are the same path or one contains the other.
func pathsOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(b, a+".") || strings.HasPrefix(a, b+".")
}

func applyField(doc map[string]any, op, path string, value any) error {
	switch op {
	case "$set":
		return setPath(doc, path, value)
	case "$unset":
		unsetPath(doc, path)
		return nil
	case "$setOnInsert":
		// Only meaningful for upserts, which this store never performs.
		return nil
	case "$inc":
		if !query.IsNumber(value) {
			return fmt.Errorf("%w: increment must be a number, got %T", ErrMalformedUpdate, value)
		}
		current, found := lookup(doc, path)
		if !found || current == nil {
			return setPath(doc, path, value)
		}
		if !query.IsNumber(current) {
			return fmt.Errorf("%w: cannot increment a %T", ErrMalformedUpdate, current)
		}
		return setPath(doc, path, addNumbers(current, value))
	case "$pop":
		arr, found, err := arrayAt(doc, path)
		if err != nil || !found || len(arr) == 0 {
			return err
		}
		n, ok := query.ToFloat64(value)
		if !ok {
			return fmt.Errorf("%w: $pop expects 1 or -1", ErrMalformedUpdate)
		}
		if n < 0 {
			return setPath(doc, path, arr[1:])
		}
		return setPath(doc, path, arr[:len(arr)-1])
	case "$push":
		arr, _, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		return setPath(doc, path, append(arr, eachValues(value)...))
	case "$addToSet":
		arr, _, err := arrayAt(doc, path)
		if err != nil {
			return err
		}
		for _, v := range eachValues(value) {
			if !containsValue(arr, v) {
				arr = append(arr, v)
			}
		}
		return setPath(doc, path, arr)
	case "$pull":
		arr, found, err := arrayAt(doc, path)
		if err != nil || !found {
			return err
		}
		kept := make([]any, 0, len(arr))
		for _, elem := range arr {
			remove, err := pullMatches(elem, value)
			if err != nil {
				return err
			}
			if !remove {
				kept = append(kept, elem)
			}
		}
		return setPath(doc, path, kept)
	case "$pullAll":
		values, ok := toSlice(value)
		if !ok {
			return fmt.Errorf("%w: $pullAll expects an array, got %T", ErrMalformedUpdate, value)
		}
		arr, found, err := arrayAt(doc, path)
		if err != nil || !found {
			return err
		}
		kept := make([]any, 0, len(arr))
		for _, elem := range arr {
			if !containsValue(values, elem) {
				kept = append(kept, elem)
			}
		}
		return setPath(doc, path, kept)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
}

// pullMatches reports whether an array element satisfies a $pull condition.
// Plain documents select element documents as a filter would.
func pullMatches(elem, cond any) (bool, error) {
	if sub, ok := toDocument(cond); ok && !persistence.IsOperatorDocument(sub) {
		elemDoc, isDoc := toDocument(elem)
		if !isDoc {
			return false, nil
		}
		return Match(elemDoc, sub)
	}
	return matchCondition(elem, true, cond)
}

// eachValues unwraps a {"$each": [...]} modifier, or wraps a single value.
func eachValues(value any) []any {
	if m, ok := toDocument(value); ok {
		if each, ok := m["$each"]; ok {
			if values, ok := toSlice(each); ok {
				return values
			}
		}
	}
	return []any{value}
}

func containsValue(arr []any, v any) bool {
	for _, elem := range arr {
		if valuesEqual(elem, v) {
			return true
		}
	}
	return false
}

func arrayAt(doc map[string]any, path string) ([]any, bool, error) {
	current, found := lookup(doc, path)
	if !found || current == nil {
		return nil, false, nil
	}
	arr, ok := toSlice(current)
	if !ok {
		return nil, true, fmt.Errorf("%w: %s is not an array", ErrMalformedUpdate, path)
	}
	out := make([]any, len(arr))
	copy(out, arr)
	return out, true, nil
}

// addNumbers adds two numbers. Integers stay exact int64 while the sum fits,
// anything else is summed as float64.
func addNumbers(a, b any) any {
	x, xInt := asInt64(a)
	y, yInt := asInt64(b)
	if xInt && yInt {
		if (y > 0 && x <= math.MaxInt64-y) || (y <= 0 && x >= math.MinInt64-y) {
			return x + y
		}
	}
	fx, _ := query.ToFloat64(a)
	fy, _ := query.ToFloat64(b)
	return fx + fy
}

// asInt64 returns v as an int64 when it is an integer that fits.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	default:
		return 0, false
	}
}

// setPath assigns value at a dotted path, creating intermediate documents.
func setPath(doc map[string]any, path string, value any) error {
	parts := strings.Split(path, ".")
	var current any = doc
	for i, part := range parts {
		last := i == len(parts)-1
		switch c := current.(type) {
		case map[string]any:
			if last {
				c[part] = value
				return nil
			}
			next, ok := c[part]
			if !ok || next == nil {
				child := map[string]any{}
				c[part] = child
				next = child
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(c) {
				return fmt.Errorf("%w: cannot address %q in an array", ErrMalformedUpdate, part)
			}
			if last {
				c[idx] = value
				return nil
			}
			current = c[idx]
		default:
			return fmt.Errorf("%w: %q is not a document", ErrMalformedUpdate, strings.Join(parts[:i], "."))
		}
	}
	return nil
}

func unsetPath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
