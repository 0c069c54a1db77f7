package common

import (
	"errors"
	"testing"
)

func TestGuardHonoursPauseView(t *testing.T) {
	pauses := NewPauses()
	if err := Guard(pauses, "bidwall"); err != nil {
		t.Fatalf("unexpected error while running: %v", err)
	}
	pauses.Set("bidwall", true)
	if err := Guard(pauses, "bidwall"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	pauses.Set("bidwall", false)
	if err := Guard(pauses, "bidwall"); err != nil {
		t.Fatalf("unexpected error after resume: %v", err)
	}
}

func TestGuardNilViewNeverBlocks(t *testing.T) {
	if err := Guard(nil, "bidwall"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	var pauses *Pauses
	if err := Guard(pauses, "bidwall"); err != nil {
		t.Fatalf("nil pauses must not block: %v", err)
	}
}

func TestPauseNamesAreNormalized(t *testing.T) {
	pauses := NewPauses()
	pauses.Set("  BidWall ", true)
	if !pauses.IsPaused("bidwall") {
		t.Fatalf("expected normalized name to match")
	}
}
