package util

import (
	"github.com/google/uuid"
)

// UUIDLength is the length of a canonical textual UUID.
const UUIDLength = 36

// DevelopmentAppID is the reserved identifier of the application under development.
// Launching it skips flashing and only updates the boot setting.
const DevelopmentAppID = "44444444-4444-4444-8444-444444444444"

// IsValidUUID4 returns whether the provided string is a canonical, hyphenated,
// version 4 RFC4122 UUID.
func IsValidUUID4(id string) bool {
	// The parser also accepts braced, urn and unhyphenated forms.
	if len(id) != UUIDLength {
		return false
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}

	return parsed.Version() == 4 && parsed.Variant() == uuid.RFC4122
}

// IsValidUUID4Bytes is IsValidUUID4 over a raw byte record, without any terminator.
func IsValidUUID4Bytes(b []byte) bool {
	if len(b) < UUIDLength {
		return false
	}

	return IsValidUUID4(string(b[:UUIDLength]))
}
