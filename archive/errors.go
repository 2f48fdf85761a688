package archive

import "errors"

// ErrNotFound is returned when a page or resource id does not resolve.
// Recoverable — callers surface it as an empty result, never a crash.
var ErrNotFound = errors.New("archive: not found")

// ErrIntegrity is returned when a stored resource's bytes no longer match its
// content-hash key. Fatal for that single read only; the rest of the store
// stays usable.
var ErrIntegrity = errors.New("archive: content hash mismatch")
