package logging

import "testing"

func TestMaskFieldRedactsUnknownKeys(t *testing.T) {
	attr := MaskField("token", "secret-value")
	if attr.Value.String() != RedactedValue {
		t.Fatalf("expected masked value, got %q", attr.Value.String())
	}
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("pool", "abc123")
	if attr.Value.String() != "abc123" {
		t.Fatalf("allowlisted key must pass through, got %q", attr.Value.String())
	}
}

func TestMaskFieldKeepsEmptyValues(t *testing.T) {
	attr := MaskField("token", "")
	if attr.Value.String() != "" {
		t.Fatalf("empty value must stay empty, got %q", attr.Value.String())
	}
}

func TestAllowlistIsSorted(t *testing.T) {
	keys := RedactionAllowlist()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("allowlist not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
	if !IsAllowlisted("  Error ") {
		t.Fatalf("allowlist lookup must normalize case and whitespace")
	}
}
