package idgen

import (
	"regexp"
	"testing"
)

func TestGenerateWithPrefix_Shape(t *testing.T) {
	pattern := regexp.MustCompile(`^t-[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := GenerateWithPrefix(PrefixTask)
		if err != nil {
			t.Fatalf("GenerateWithPrefix() error on iteration %d: %v", i, err)
		}
		if len(id) != len(PrefixTask)+Length {
			t.Fatalf("length = %d, want %d (id=%q)", len(id), len(PrefixTask)+Length, id)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("GenerateWithPrefix() = %q, does not match expected pattern", id)
		}
	}
}

func TestGenerateWithPrefix_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := GenerateWithPrefix(PrefixDump)
		if err != nil {
			t.Fatalf("GenerateWithPrefix() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
