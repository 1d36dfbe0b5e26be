// Package nbtconv reads typed values from decoded NBT tags. Missing keys and
// values of an unexpected type yield the zero value.
package nbtconv

// Int32 reads an int32 from m[key]. Other integer widths are converted.
func Int32(m map[string]any, key string) int32 {
	switch v := m[key].(type) {
	case int32:
		return v
	case int16:
		return int32(v)
	case uint8:
		return int32(v)
	case int64:
		return int32(v)
	case int:
		return int32(v)
	}
	return 0
}

// Int64 reads an int64 from m[key]. Other integer widths are converted.
func Int64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case uint8:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

// Int16 reads an int16 from m[key].
func Int16(m map[string]any, key string) int16 {
	switch v := m[key].(type) {
	case int16:
		return v
	case int32:
		return int16(v)
	case uint8:
		return int16(v)
	}
	return 0
}

// Uint8 reads a byte from m[key].
func Uint8(m map[string]any, key string) uint8 {
	switch v := m[key].(type) {
	case uint8:
		return v
	case int32:
		return uint8(v)
	case int16:
		return uint8(v)
	}
	return 0
}

// Bool reads a boolean stored as a byte (or a bool before encoding).
func Bool(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case uint8:
		return v != 0
	}
	return false
}

// String reads a string from m[key].
func String(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// Map reads a compound from m[key].
func Map(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

// Compounds reads a list of compounds from m[key]. Both the decoded form
// ([]any) and the pre-encoding form ([]map[string]any) are accepted.
func Compounds(m map[string]any, key string) []map[string]any {
	switch v := m[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if c, ok := e.(map[string]any); ok {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}
