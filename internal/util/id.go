package util

import "github.com/google/uuid"

// NewID returns a random RFC 4122 identifier used to correlate log lines of
// one request or batch run.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the first eight characters of a fresh identifier.
func ShortID() string {
	return NewID()[:8]
}
