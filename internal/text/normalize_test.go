package text

import "testing"

func TestNormalizeLowercasesAndCollapses(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Hello, World!", "hello world"},
		{"repeated punctuation", "a...b,,,c", "a b c"},
		{"mixed whitespace", "a\tb\n\nc", "a b c"},
		{"leading and trailing space", "  padded  ", "padded"},
		{"digits kept", "room 237", "room 237"},
		{"empty", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Normalize(c.in)
			if got != c.want {
				t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

// Idempotent normalization: normalize(normalize(T)) = normalize(T).
func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"The Quick Brown Fox!!",
		"  already   spaced  ",
		"MiXeD-CaSe_with.punct",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("the quick brown fox"); got != 4 {
		t.Errorf("WordCount = %d, want 4", got)
	}
	if got := WordCount(""); got != 0 {
		t.Errorf("WordCount(empty) = %d, want 0", got)
	}
}
