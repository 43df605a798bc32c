package fingerprint

import (
	"strings"
	"testing"
)

func longText(word string, times int) []byte {
	return []byte(strings.Repeat(word+" ", times))
}

func TestComputeRejectsShortContent(t *testing.T) {
	if _, err := Compute([]byte("too short")); err != ErrTooSmall {
		t.Errorf("Compute on short content error = %v, want ErrTooSmall", err)
	}
}

func TestComputeSelfDistanceIsZero(t *testing.T) {
	content := longText("the quick brown fox jumps over the lazy dog and then runs away", 10)

	d1, err := Compute(content)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	d2, err := Compute(content)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if dist := Distance(d1, d2); dist != 0 {
		t.Errorf("Distance of identical content = %d, want 0", dist)
	}
}

func TestDistanceNilIsSentinel(t *testing.T) {
	content := longText("plenty of filler text to exceed the minimum digest size threshold", 10)
	d, err := Compute(content)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if dist := Distance(nil, d); dist != -1 {
		t.Errorf("Distance(nil, d) = %d, want -1", dist)
	}
	if dist := Distance(d, nil); dist != -1 {
		t.Errorf("Distance(d, nil) = %d, want -1", dist)
	}
}

func TestParseRoundTrip(t *testing.T) {
	content := longText("round trip content for the tlsh digest parser test case here", 10)
	d, err := Compute(content)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	reparsed, err := Parse(d.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if reparsed.String() != d.String() {
		t.Errorf("round-tripped digest = %q, want %q", reparsed.String(), d.String())
	}
}

func TestParseEmptyIsNil(t *testing.T) {
	d, err := Parse("")
	if err != nil {
		t.Fatalf("Parse(\"\"): %v", err)
	}
	if d != nil {
		t.Errorf("Parse(\"\") = %v, want nil", d)
	}
}
