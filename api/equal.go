package api

import (
	"reflect"
)

//Equal compares two field values the way a document store does: numbers are
//compared by value whatever their Go type, mappings and sequences element-wise
func Equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch va := a.(type) {
	case Record:
		return equalMaps(va, b)
	case map[string]interface{}:
		return equalMaps(Record(va), b)
	case []interface{}:
		vb, ok := b.([]interface{})
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func equalMaps(a Record, b interface{}) bool {
	var vb Record
	switch m := b.(type) {
	case Record:
		vb = m
	case map[string]interface{}:
		vb = Record(m)
	default:
		return false
	}
	if len(a) != len(vb) {
		return false
	}
	for k, v := range a {
		w, ok := vb[k]
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
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
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
