package weave

import "errors"

var (
	// ErrNotFound reports a missing capsule.
	ErrNotFound = errors.New("weave: capsule not found")
	// ErrDangling classifies a member page that no longer resolves. Read
	// paths log and skip it; it is never returned as a hard failure.
	ErrDangling = errors.New("weave: dangling page reference")
	// ErrInvalidKind reports an unknown capsule kind.
	ErrInvalidKind = errors.New("weave: invalid capsule kind")
)
