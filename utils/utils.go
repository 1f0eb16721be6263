package utils

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// StructToMap converts a Go struct into a map[string]any using its bson
// tags, so the result is the document a store would hold for the struct.
//
// The input `record` must be a struct or a pointer to a struct. If `record` is
// nil, or not a struct/pointer to a struct, an error is returned.
//
// Example:
//
//	type Item struct {
//		SKU string `bson:"sku"`
//		Qty int    `bson:"qty,omitempty"`
//	}
//	doc, err := StructToMap(Item{SKU: "a-1"})
//	// doc is map[string]any{"sku": "a-1"}
func StructToMap[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)

	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	raw, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: failed to marshal input record: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("StructToMap: failed to unmarshal record document: %w", err)
	}
	return normalize(doc).(map[string]any), nil
}

// MapToStruct converts a document into a new instance of the struct type T.
// It is the inverse of StructToMap. Numbers are converted between Go numeric
// types where the value fits, so documents decoded from JSON (where every
// number is a float64) fill integer fields.
func MapToStruct[T any](input map[string]any) (T, error) {
	var zero T

	if input == nil {
		return zero, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	raw, err := bson.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to marshal input map: %w", err)
	}
	var result T
	if err := bson.Unmarshal(raw, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to unmarshal into target struct: %w", err)
	}
	return result, nil
}

// normalize turns nested bson.M and bson.A values into plain maps and slices.
func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
