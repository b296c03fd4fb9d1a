package entry

import (
	"regexp"

	"github.com/google/uuid"
)

// UUIDLength is the number of characters in an entry identifier.
const UUIDLength = 8

var uuidRegex = regexp.MustCompile(`^[0-9A-Za-z]{8}$`)

// NewUUID returns a fresh identifier: the first eight hex digits of a random
// UUID. taken, when non-nil, reports identifiers already in use; those are
// skipped.
func NewUUID(taken func(string) bool) string {
	for {
		id := uuid.New().String()[:UUIDLength]
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// ValidUUID reports whether s is a well-formed entry identifier: eight ASCII
// letters or digits. Fresh identifiers are always lowercase hex.
func ValidUUID(s string) bool {
	return uuidRegex.MatchString(s)
}
