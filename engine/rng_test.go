package engine

import "testing"

func TestRNG_Deterministic(t *testing.T) {
	a, b := NewRNG(42), NewRNG(42)
	for i := 0; i < 20; i++ {
		if x, y := a.Pick(5), b.Pick(5); x != y {
			t.Fatalf("draw %d: got %d and %d from same seed", i, x, y)
		}
	}
}

func TestRNG_Ranges(t *testing.T) {
	rng := NewRNG(99)
	for i := 0; i < 1000; i++ {
		if p := rng.Pick(3); p < 0 || p > 2 {
			t.Fatalf("Pick(3) out of range: %d", p)
		}
	}
	if rng.Pick(1) != 0 {
		t.Error("Pick(1) must be 0")
	}
}

func TestRNG_Position_Tracks(t *testing.T) {
	rng := NewRNG(42)
	rng.Pick(5)
	rng.Pick(2)
	rng.Pick(20)
	if rng.Position() != 3 {
		t.Fatalf("expected position 3, got %d", rng.Position())
	}
}

func TestRNG_Restore_MatchesPosition(t *testing.T) {
	rng := NewRNG(7)
	for i := 0; i < 10; i++ {
		rng.Pick(i + 1) // mixed ranges must still replay exactly
	}
	var expected [5]int
	for i := range expected {
		expected[i] = rng.Pick(1000)
	}

	restored := RestoreRNG(7, 10)
	if restored.Position() != 10 || restored.Seed() != 7 {
		t.Fatalf("restored at %d seed %d", restored.Position(), restored.Seed())
	}
	for i, want := range expected {
		if got := restored.Pick(1000); got != want {
			t.Fatalf("draw %d: expected %d, got %d", i, want, got)
		}
	}
}
