// Package idgen provides ID generation for continuum rows.
//
// Pages and capsules use time-sortable UUID v7 identifiers with a type
// prefix, so an ID alone tells you what kind of row it names. Resources are
// keyed by content hash instead and never pass through this package.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
// Time-sortable, which keeps page listings roughly insertion-ordered even
// before the captured_at index is consulted.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Page generates page identifiers ("pg_...").
var Page Generator = Prefixed("pg_", UUIDv7())

// Capsule generates capsule identifiers ("cap_...").
var Capsule Generator = Prefixed("cap_", UUIDv7())

// Default is the bare UUIDv7 generator.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a bare UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
