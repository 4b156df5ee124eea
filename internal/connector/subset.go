package connector

import (
	"encoding/json"
	"math"
	"reflect"
)

// SubsetOf copies the keys of source whose values are set. Missing keys and
// zero values such as false, 0, "" and nil are skipped.
func SubsetOf(source map[string]any, keys []string) map[string]any {
	subset := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, ok := source[key]; ok && isSet(value) {
			subset[key] = value
		}
	}
	return subset
}

func isSet(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err != nil || (f != 0 && !math.IsNaN(f))
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0 && !math.IsNaN(float64(v))
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
