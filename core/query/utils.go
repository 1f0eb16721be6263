package query

import (
	"math"
	"strconv"
)

// ToFloat64 converts a value of various numeric types (or a numeric string)
// to a float64. It returns the converted float64 and a boolean indicating
// whether the conversion was successful.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IsNumber reports whether v holds a Go numeric type. Numeric strings do not
// count.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// Negate returns -v keeping the numeric type of v. Unsigned values are
// widened to int64. It reports false for non-numbers and for values whose
// negation does not fit: the minimum of a signed type, or an unsigned value
// above math.MaxInt64.
func Negate(v any) (any, bool) {
	switch val := v.(type) {
	case int:
		if val == math.MinInt {
			return nil, false
		}
		return -val, true
	case int8:
		if val == math.MinInt8 {
			return nil, false
		}
		return -val, true
	case int16:
		if val == math.MinInt16 {
			return nil, false
		}
		return -val, true
	case int32:
		if val == math.MinInt32 {
			return nil, false
		}
		return -val, true
	case int64:
		if val == math.MinInt64 {
			return nil, false
		}
		return -val, true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, false
		}
		return -int64(val), true
	case uint8:
		return -int64(val), true
	case uint16:
		return -int64(val), true
	case uint32:
		return -int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return nil, false
		}
		return -int64(val), true
	case float32:
		return -val, true
	case float64:
		return -val, true
	default:
		return nil, false
	}
}
