package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func isNullish(v any) bool {
	if v == nil {
		return true
	}
	_, ok := v.(undefined)
	return ok
}

func describe(v any) string {
	if _, ok := v.(undefined); ok {
		return "undefined"
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// normalizeNumber folds every Go numeric type into float64.
func normalizeNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	if isNullish(v) {
		return false
	}
	if f, ok := normalizeNumber(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}

func toNumber(v any) float64 {
	if f, ok := normalizeNumber(v); ok {
		return f
	}
	switch t := v.(type) {
	case nil:
		return 0
	case undefined:
		return math.NaN()
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toString(v any) string {
	if f, ok := normalizeNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}

func strictEqual(a, b any) bool {
	if _, ok := a.(undefined); ok {
		_, ok := b.(undefined)
		return ok
	}
	if _, ok := b.(undefined); ok {
		return false
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := normalizeNumber(a); ok {
		bf, ok := normalizeNumber(b)
		return ok && af == bf
	}
	switch at := a.(type) {
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	if strictEqual(a, b) {
		return true
	}
	_, aNum := normalizeNumber(a)
	_, bNum := normalizeNumber(b)
	_, aStr := a.(string)
	_, bStr := b.(string)
	_, aBool := a.(bool)
	_, bBool := b.(bool)
	if (aNum || aStr || aBool) && (bNum || bStr || bBool) && !(aStr && bStr) {
		l, r := toNumber(a), toNumber(b)
		return !math.IsNaN(l) && l == r
	}
	return false
}
