// Package axes implements the canonical serialisation of image coordinates.
//
// A coordinate maps axis names to values that are either signed 32-bit
// integers or strings. Its canonical form is a UTF-8 JSON object whose keys
// are sorted lexicographically; that byte string is the lookup key used by
// the in-memory maps and the on-disk index, so equal coordinates must always
// serialise to identical bytes. The emitter below is hand-rolled rather than
// delegated to encoding/json so the canonical form cannot drift with library
// behaviour (key ordering, HTML escaping, number formatting).
package axes

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Reserved axis names locating a tile in the XY grid of a tiled dataset.
const (
	RowAxis    = "row"
	ColumnAxis = "column"
)

// Map is one image's coordinate: axis name to value. Values are int or
// string; integer values must fit in 32 bits.
type Map map[string]interface{}

// NormalizeValue coerces the supported integer kinds to int and validates
// range. Strings pass through. Any other kind is an error.
func NormalizeValue(axis string, v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		if val < math.MinInt32 || val > math.MaxInt32 {
			return nil, fmt.Errorf("axis %q: value %d overflows int32", axis, val)
		}
		return val, nil
	case int32:
		return int(val), nil
	case int64:
		if val < math.MinInt32 || val > math.MaxInt32 {
			return nil, fmt.Errorf("axis %q: value %d overflows int32", axis, val)
		}
		return int(val), nil
	default:
		return nil, fmt.Errorf("axis %q: unsupported value type %T", axis, v)
	}
}

// Serialize emits the canonical sorted-key JSON form of m.
func Serialize(m Map) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("encoding axis name %q: %w", k, err)
		}
		b.Write(name)
		b.WriteByte(':')

		v, err := NormalizeValue(k, m[k])
		if err != nil {
			return nil, err
		}
		switch val := v.(type) {
		case int:
			b.WriteString(strconv.Itoa(val))
		case string:
			s, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encoding axis %q value: %w", k, err)
			}
			b.Write(s)
		}
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Key returns the canonical form as a string, for use as a map key.
func Key(m Map) (string, error) {
	b, err := Serialize(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Deserialize parses a canonical (or any) JSON coordinate object back into a
// Map. Integer values come back as int and strings as string; any other
// value (float, bool, array, object, or an integer outside int32) is an
// error.
func Deserialize(data []byte) (Map, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing axes %q: %w", data, err)
	}
	m := make(Map, len(raw))
	for k, v := range raw {
		s := strings.TrimSpace(string(v))
		if len(s) > 0 && s[0] == '"' {
			var str string
			if err := json.Unmarshal(v, &str); err != nil {
				return nil, fmt.Errorf("parsing axis %q: %w", k, err)
			}
			m[k] = str
			continue
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing axis %q: value %s is neither string nor int32", k, s)
		}
		m[k] = int(n)
	}
	return m, nil
}

// Copy returns a shallow copy of m.
func Copy(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
