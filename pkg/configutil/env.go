package configutil

import (
	"os"
	"reflect"
)

// ExpandEnv replaces ${VAR} and $VAR references in every string reachable
// from ptr: struct fields, slices and map values, including free-form
// provider settings.
func ExpandEnv(ptr any) {
	expandValue(reflect.ValueOf(ptr))
}

// ExpandSettings expands env references in a free-form settings map in place.
func ExpandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		return ExpandSettings(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			if ks, ok := k.(string); ok {
				out[ks] = expandAny(v)
			}
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return
		}
		for _, key := range v.MapKeys() {
			val := v.MapIndex(key)
			switch v.Type().Elem().Kind() {
			case reflect.String:
				v.SetMapIndex(key, reflect.ValueOf(os.ExpandEnv(val.String())))
			case reflect.Interface:
				if val.IsNil() {
					continue
				}
				v.SetMapIndex(key, reflect.ValueOf(expandAny(val.Interface())))
			}
		}
	}
}
