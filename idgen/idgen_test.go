package idgen

import (
	"strings"
	"testing"
)

func TestPrefixes(t *testing.T) {
	// WHAT: Typed generators carry their prefix.
	if id := Page(); !strings.HasPrefix(id, "pg_") {
		t.Errorf("page id %q lacks pg_ prefix", id)
	}
	if id := Capsule(); !strings.HasPrefix(id, "cap_") {
		t.Errorf("capsule id %q lacks cap_ prefix", id)
	}
}

func TestUnique(t *testing.T) {
	// WHAT: Consecutive IDs never collide.
	seen := make(map[string]bool)
	for range 1000 {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if got != id {
		t.Errorf("Parse round-trip: got %q, want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("Parse should reject garbage")
	}
}
