package state_test

import (
	"testing"

	"github.com/batonhq/baton/state"
)

func TestFingerprintStableAcrossKeyOrder(t *testing.T) {
	a := state.Fingerprint(map[string]any{"query": "report", "limit": 10, "deep": map[string]any{"b": 2, "a": 1}})
	b := state.Fingerprint(map[string]any{"deep": map[string]any{"a": 1, "b": 2}, "limit": 10, "query": "report"})

	if a != b {
		t.Errorf("equivalent params produced different fingerprints:\n%s\n%s", a, b)
	}
}

func TestFingerprintDistinguishesParams(t *testing.T) {
	a := state.Fingerprint(map[string]any{"query": "report"})
	b := state.Fingerprint(map[string]any{"query": "summary"})

	if a == b {
		t.Error("different params produced the same fingerprint")
	}
}

func TestFingerprintNilAndEmpty(t *testing.T) {
	if state.Fingerprint(nil) == "" {
		t.Error("nil params must still fingerprint")
	}
	if state.Fingerprint(map[string]any{}) == "" {
		t.Error("empty params must still fingerprint")
	}
	// nil marshals to "null", empty map to "{}": distinct inputs, distinct keys.
	if state.Fingerprint(nil) == state.Fingerprint(map[string]any{}) {
		t.Error("nil and empty params should not collide")
	}
}

func TestFingerprintLength(t *testing.T) {
	got := state.Fingerprint(map[string]any{"a": 1})
	if len(got) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(got))
	}
}
