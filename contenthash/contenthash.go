// Package contenthash provides the content-addressing primitive shared by the
// archive and resource stores.
//
// A content address is the lowercase hex SHA-256 of an object's bytes:
// identical content always maps to the same key, so it is safe to use both as
// a SQL primary key and as a map key.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hex-encoded digest.
const Size = sha256.Size * 2

// Sum returns the content address of b.
func Sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// SumString is Sum over a string without an extra copy at the call site.
func SumString(s string) string {
	return Sum([]byte(s))
}

// Short returns a log-friendly 12-character prefix of a digest.
func Short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// Valid reports whether s looks like a digest produced by Sum.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
