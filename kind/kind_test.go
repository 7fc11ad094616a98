package kind

import "testing"

func TestIsRecognizesDirectAndInheritedKinds(t *testing.T) {
	base := Make()
	mid := Make(base)
	leaf := Make(mid)

	if !Is(leaf, leaf) {
		t.Errorf("leaf should be its own kind")
	}
	if !Is(leaf, mid) {
		t.Errorf("leaf should inherit mid")
	}
	if !Is(leaf, base) {
		t.Errorf("leaf should inherit base")
	}

	other := Make()
	if Is(leaf, other) {
		t.Errorf("leaf should not match an unrelated kind")
	}
}

func TestMakeDeduplicatesRepeatedBases(t *testing.T) {
	base := Make()
	combo := Make(base, base)
	if !Is(combo, base) {
		t.Errorf("combo should still inherit base once deduplicated")
	}
}

func TestIsMatchesAnyOfMultipleBases(t *testing.T) {
	a := Make()
	b := Make()
	leaf := Make(a)

	if !Is(leaf, b, a) {
		t.Errorf("Is should match when any provided base matches")
	}
	if Is(leaf, b) {
		t.Errorf("Is should not match when no provided base matches")
	}
}
