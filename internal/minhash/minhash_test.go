package minhash

import (
	"math"
	"math/rand"
	"testing"

	"github.com/simdex/simdex/internal/text"
)

// Determinism: for a fixed seed, signatures are byte-for-byte
// identical across independently constructed engines.
func TestSignatureIsDeterministic(t *testing.T) {
	shingles := text.Shingles(text.Normalize("the quick brown fox jumps over the lazy dog"), 5)

	e1 := New(64, 42)
	e2 := New(64, 42)

	s1 := e1.Signature(shingles)
	s2 := e2.Signature(shingles)

	if len(s1) != len(s2) {
		t.Fatalf("signature length differs: %d vs %d", len(s1), len(s2))
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			t.Fatalf("signature slot %d differs: %d vs %d", i, s1[i], s2[i])
		}
	}
}

// Signature length: |signature(S)| = H for every input, including
// empty S.
func TestSignatureLength(t *testing.T) {
	e := New(32, 1)

	nonEmpty := text.Shingles("some normalized text", 5)
	if sig := e.Signature(nonEmpty); len(sig) != 32 {
		t.Errorf("signature length = %d, want 32", len(sig))
	}

	empty := map[string]struct{}{}
	if sig := e.Signature(empty); len(sig) != 32 {
		t.Errorf("empty-input signature length = %d, want 32", len(sig))
	}
}

func TestEstimateRejectsLengthMismatch(t *testing.T) {
	e := New(16, 7)
	short := make([]uint32, 8)
	full := e.Signature(text.Shingles("abc", 2))

	if _, err := e.Estimate(short, full); err == nil {
		t.Error("expected ErrInvalidSignature for mismatched lengths")
	}
}

func TestEstimateSelfIsOne(t *testing.T) {
	e := New(64, 3)
	sig := e.Signature(text.Shingles(text.Normalize("a repeated sentence for self comparison"), 5))

	est, err := e.Estimate(sig, sig)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est != 1 {
		t.Errorf("self-estimate = %v, want 1", est)
	}
}

// MinHash unbiasedness: over many random document pairs, the mean
// absolute error between the MinHash estimate and exact Jaccard is
// small, and close to the theoretical standard deviation sqrt(J(1-J)/H).
func TestEstimateIsApproximatelyUnbiased(t *testing.T) {
	const numHashes = 128
	const trials = 200

	e := New(numHashes, 99)
	rng := rand.New(rand.NewSource(1234))

	vocab := make([]string, 500)
	for i := range vocab {
		vocab[i] = randomToken(rng, i)
	}

	var sumAbsErr float64
	for t_ := 0; t_ < trials; t_++ {
		a := randomSubset(rng, vocab, 40)
		b := randomSubset(rng, vocab, 40)

		exact := text.Jaccard(a, b)
		est, err := e.Estimate(e.Signature(a), e.Signature(b))
		if err != nil {
			t.Fatalf("Estimate: %v", err)
		}

		sumAbsErr += math.Abs(est - exact)
	}

	meanAbsErr := sumAbsErr / trials
	// A generous bound: for H=128 hash functions, the standard
	// deviation of the estimator is at most 0.5/sqrt(H) ≈ 0.044; mean
	// absolute error should sit well under 3x that across 200 trials.
	const bound = 0.15
	if meanAbsErr > bound {
		t.Errorf("mean |estimate-exact| = %v, want <= %v", meanAbsErr, bound)
	}
}

func randomToken(rng *rand.Rand, i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	n := 3 + rng.Intn(4)
	buf := make([]byte, n)
	for j := range buf {
		buf[j] = letters[rng.Intn(len(letters))]
	}
	return string(buf)
}

func randomSubset(rng *rand.Rand, vocab []string, size int) map[string]struct{} {
	set := make(map[string]struct{}, size)
	for len(set) < size {
		set[vocab[rng.Intn(len(vocab))]] = struct{}{}
	}
	return set
}
