package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a new random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// ShortUUID returns the first block of a new random UUID.
// It is meant for log correlation, not for uniqueness guarantees.
func ShortUUID() string {
	return MustUUID()[:8]
}
