package applications

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrParseJSON is returned when a descriptor isn't a JSON object.
	ErrParseJSON = errors.New("error parsing JSON")

	// ErrParseMD5 is returned when the md5 field isn't a 32 characters hex string.
	ErrParseMD5 = errors.New("error parsing MD5")
)

// Parse decodes a descriptor payload.
//
// Unknown, missing or wrongly typed fields are ignored. Only a payload that isn't a JSON
// object or an md5 string that doesn't decode to 16 bytes are errors.
func Parse(payload []byte) (*Descriptor, error) {
	fields := map[string]json.RawMessage{}

	err := json.Unmarshal(payload, &fields)
	if err != nil || fields == nil {
		return nil, ErrParseJSON
	}

	d := &Descriptor{
		JSON: slices.Clone(payload),
	}

	stringFields := map[string]*string{
		"uuid":        &d.UUID,
		"name":        &d.Name,
		"description": &d.Description,
		"image":       &d.Image,
		"binary":      &d.Binary,
		"version":     &d.Version,
	}

	for key, target := range stringFields {
		raw, ok := fields[key]
		if !ok {
			continue
		}

		_ = json.Unmarshal(raw, target)
	}

	d.Tags = parseList(fields["tags"])
	d.Devices = parseList(fields["devices"])

	raw, ok := fields["md5"]
	if ok {
		var sum string

		err := json.Unmarshal(raw, &sum)
		if err == nil {
			decoded, err := hex.DecodeString(sum)
			if err != nil || len(decoded) != len(d.MD5) {
				return nil, fmt.Errorf("%w: %q", ErrParseMD5, sum)
			}

			copy(d.MD5[:], decoded)
		}
	}

	return d, nil
}

// parseList decodes an array of strings, skipping other elements and keeping at most MaxListItems.
func parseList(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}

	var items []json.RawMessage

	err := json.Unmarshal(raw, &items)
	if err != nil {
		return nil
	}

	out := []string{}

	for _, item := range items {
		if len(out) >= MaxListItems {
			break
		}

		var s string

		err := json.Unmarshal(item, &s)
		if err != nil {
			continue
		}

		out = append(out, s)
	}

	return out
}
