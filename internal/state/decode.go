package state

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

const versionPrefix = "#Version: "

// Decode reconstitutes a given state. If upgradeFuncs is nil the default upgrades are
// applied to older encodings before decoding.
func Decode(b []byte, upgradeFuncs UpgradeFuncs, s *State) error {
	lines := strings.Split(string(b), "\n")

	if strings.HasPrefix(lines[0], versionPrefix) {
		version, err := strconv.Atoi(strings.TrimPrefix(lines[0], versionPrefix))
		if err != nil {
			return err
		}

		s.StateVersion = version

		if upgradeFuncs == nil {
			upgradeFuncs = upgrades
		}

		for i := version; i < len(upgradeFuncs); i++ {
			if upgradeFuncs[i] == nil {
				continue
			}

			lines, err = upgradeFuncs[i](lines)
			if err != nil {
				return err
			}

			// An upgrade may emit multi-line entries.
			lines = strings.Split(strings.Join(lines, "\n"), "\n")
			s.StateVersion = i + 1
		}
	}

	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return fmt.Errorf("malformed line '%s'", line)
		}

		err := decodeHelper(reflect.ValueOf(s), strings.Split(key, "."), value)
		if err != nil {
			return err
		}
	}

	return nil
}

// decodeHelper walks the struct following keys and sets value at the end.
//
// Map values aren't addressable, so a map element is decoded into a copy which is
// then stored back into the map.
func decodeHelper(v reflect.Value, keys []string, value string) error {
	for i, key := range keys {
		if reflect.Indirect(v).Kind() != reflect.Struct {
			return fmt.Errorf("unsupported kind '%s'", reflect.Indirect(v).Kind())
		}

		name, index, indexed := strings.Cut(key, "[")
		index = strings.TrimSuffix(index, "]")

		field := reflect.Indirect(v).FieldByName(name)
		if !field.IsValid() {
			return fmt.Errorf("invalid field '%s' for struct '%s'", key, v.Type())
		}

		switch {
		case indexed && field.Kind() == reflect.Map:
			if field.IsNil() {
				field.Set(reflect.MakeMap(field.Type()))
			}

			elem := reflect.New(field.Type().Elem()).Elem()

			existing := field.MapIndex(reflect.ValueOf(index))
			if existing.IsValid() {
				elem.Set(existing)
			}

			var err error
			if i == len(keys)-1 {
				err = setValue(elem, value)
			} else {
				err = decodeHelper(elem, keys[i+1:], value)
			}

			if err != nil {
				return err
			}

			field.SetMapIndex(reflect.ValueOf(index), elem)

			return nil
		case indexed && field.Kind() == reflect.Slice:
			n, err := strconv.Atoi(index)
			if err != nil {
				return err
			}

			for field.Len() <= n {
				field.Set(reflect.Append(field, reflect.Zero(field.Type().Elem())))
			}

			field = field.Index(n)
		case field.Kind() == reflect.Pointer:
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
		}

		v = field
	}

	return setValue(reflect.Indirect(v), value)
}

// setValue parses the string representation of a scalar into v.
func setValue(v reflect.Value, value string) error {
	switch v.Kind() { //nolint:exhaustive
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		v.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, v.Type().Bits())
		if err != nil {
			return err
		}

		v.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, v.Type().Bits())
		if err != nil {
			return err
		}

		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, v.Type().Bits())
		if err != nil {
			return err
		}

		v.SetUint(n)
	case reflect.String:
		v.SetString(strings.ReplaceAll(value, "\\n", "\n"))
	default:
		return fmt.Errorf("unhandled kind '%s'", v.Kind())
	}

	return nil
}
