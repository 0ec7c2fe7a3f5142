package state

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Encode serializes the state into its line based representation.
func Encode(s *State) ([]byte, error) {
	var b bytes.Buffer

	_, err := fmt.Fprintf(&b, "%s%d\n", versionPrefix, s.StateVersion)
	if err != nil {
		return nil, err
	}

	err = encodeHelper(&b, nil, reflect.ValueOf(s))
	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// encodeHelper writes one "Key.Sub[index]: value" line per non-zero scalar.
//
// Zero values are never written. Exported fields tagged `state:"-"` or `json:"-"` are skipped.
// Map keys are sorted so the output is stable.
func encodeHelper(b *bytes.Buffer, keys []string, v reflect.Value) error {
	if v.IsZero() {
		return nil
	}

	key := strings.Join(keys, ".")

	switch v.Kind() { //nolint:exhaustive
	case reflect.Pointer:
		return encodeHelper(b, keys, v.Elem())
	case reflect.Struct:
		for _, field := range reflect.VisibleFields(v.Type()) {
			if !field.IsExported() || field.Tag.Get("json") == "-" || field.Tag.Get("state") == "-" {
				continue
			}

			err := encodeHelper(b, append(slices.Clone(keys), field.Name), v.FieldByIndex(field.Index))
			if err != nil {
				return err
			}
		}
	case reflect.Map:
		mapKeys := v.MapKeys()
		slices.SortFunc(mapKeys, func(a reflect.Value, b reflect.Value) int {
			return strings.Compare(a.String(), b.String())
		})

		for _, k := range mapKeys {
			if strings.Contains(k.String(), ".") {
				return fmt.Errorf("map key '%s' cannot contain dots", k)
			}

			err := encodeHelper(b, indexKey(keys, k.String()), v.MapIndex(k))
			if err != nil {
				return err
			}
		}
	case reflect.Slice:
		for i := range v.Len() {
			err := encodeHelper(b, indexKey(keys, fmt.Sprint(i)), v.Index(i))
			if err != nil {
				return err
			}
		}
	case reflect.String:
		_, err := fmt.Fprintf(b, "%s: %s\n", key, strings.ReplaceAll(v.String(), "\n", "\\n"))
		if err != nil {
			return err
		}
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		_, err := fmt.Fprintf(b, "%s: %v\n", key, v.Interface())
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s: unhandled kind '%s'", key, v.Kind())
	}

	return nil
}

func indexKey(keys []string, index string) []string {
	out := slices.Clone(keys)
	out[len(out)-1] = fmt.Sprintf("%s[%s]", out[len(out)-1], index)

	return out
}
