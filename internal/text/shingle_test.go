package text

import "testing"

func TestShinglesSlidingWindow(t *testing.T) {
	got := Shingles("abcde", 3)
	want := []string{"abc", "bcd", "cde"}
	for _, w := range want {
		if _, ok := got[w]; !ok {
			t.Errorf("Shingles missing %q, got %v", w, got)
		}
	}
	if len(got) != len(want) {
		t.Errorf("Shingles count = %d, want %d", len(got), len(want))
	}
}

func TestShinglesShorterThanK(t *testing.T) {
	got := Shingles("ab", 5)
	if len(got) != 1 {
		t.Fatalf("expected a single whole-string shingle, got %v", got)
	}
	if _, ok := got["ab"]; !ok {
		t.Errorf("expected whole string as the shingle, got %v", got)
	}
}

func TestWordShingles(t *testing.T) {
	got := WordShingles("the quick brown fox jumps", 3)
	want := []string{"the quick brown", "quick brown fox", "brown fox jumps"}
	for _, w := range want {
		if _, ok := got[w]; !ok {
			t.Errorf("WordShingles missing %q", w)
		}
	}
}

// Jaccard bounds: 0 ≤ J(A,B) ≤ 1, = 1 iff A = B, = 0 iff disjoint.
func TestJaccardBounds(t *testing.T) {
	a := Shingles("the quick brown fox", 5)
	b := Shingles("the quick brown fox", 5)
	if j := Jaccard(a, b); j != 1 {
		t.Errorf("Jaccard of identical sets = %v, want 1", j)
	}

	c := map[string]struct{}{"xyz": {}}
	d := map[string]struct{}{"abc": {}}
	if j := Jaccard(c, d); j != 0 {
		t.Errorf("Jaccard of disjoint sets = %v, want 0", j)
	}

	e := Shingles("the quick brown fox", 5)
	f := Shingles("a totally different sentence entirely", 5)
	j := Jaccard(e, f)
	if j < 0 || j > 1 {
		t.Errorf("Jaccard out of bounds: %v", j)
	}
}

func TestJaccardEmptySets(t *testing.T) {
	empty := map[string]struct{}{}
	if j := Jaccard(empty, empty); j != 0 {
		t.Errorf("Jaccard of two empty sets = %v, want 0 by convention", j)
	}
}

func TestCosineIdenticalIsOne(t *testing.T) {
	a := ShingleFrequency("the quick brown fox jumps", 3)
	b := ShingleFrequency("the quick brown fox jumps", 3)
	if c := Cosine(a, b); c < 0.999 {
		t.Errorf("Cosine of identical frequency maps = %v, want ~1", c)
	}
}

func TestCosineEmptyIsZero(t *testing.T) {
	empty := map[string]int{}
	other := ShingleFrequency("some text", 3)
	if c := Cosine(empty, other); c != 0 {
		t.Errorf("Cosine with an empty vector = %v, want 0", c)
	}
}
