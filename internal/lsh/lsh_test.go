package lsh

import (
	"math/rand"
	"testing"

	"github.com/simdex/simdex/internal/minhash"
	"github.com/simdex/simdex/internal/text"
)

func TestNewRejectsNonPositiveParams(t *testing.T) {
	if _, err := New(0, 8); err != ErrInvalidParams {
		t.Errorf("New(0,8) error = %v, want ErrInvalidParams", err)
	}
	if _, err := New(16, 0); err != ErrInvalidParams {
		t.Errorf("New(16,0) error = %v, want ErrInvalidParams", err)
	}
}

func TestBandHashIsStableAndOrderSensitive(t *testing.T) {
	a := []uint32{1, 2, 3}
	b := []uint32{1, 2, 3}
	c := []uint32{3, 2, 1}

	if BandHash(a) != BandHash(b) {
		t.Error("BandHash must be stable across equal slices")
	}
	if BandHash(a) == BandHash(c) {
		t.Error("BandHash must distinguish different orderings")
	}
}

func TestIndexDocRejectsSizeMismatch(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := idx.IndexDoc(1, make([]uint32, 10)); err != ErrSizeMismatch {
		t.Errorf("IndexDoc size mismatch error = %v, want ErrSizeMismatch", err)
	}
}

func TestCandidatesFindsSelf(t *testing.T) {
	idx, err := New(16, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng := minhash.New(128, 42)

	sig := eng.Signature(text.Shingles(text.Normalize("the quick brown fox jumps over the lazy dog"), 5))
	if err := idx.IndexDoc(1, sig); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}

	cands, err := idx.Candidates(sig)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if _, ok := cands[1]; !ok {
		t.Error("expected the indexed document to candidate-match its own signature")
	}
}

// Cascade: after Remove, the doc id is absent from every band bucket.
func TestRemoveClearsAllBands(t *testing.T) {
	idx, err := New(16, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng := minhash.New(128, 42)
	sig := eng.Signature(text.Shingles(text.Normalize("some corpus document content"), 5))

	if err := idx.IndexDoc(7, sig); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	idx.Remove(7)

	for band, bucketMap := range idx.table {
		for hash, bucket := range bucketMap {
			if _, ok := bucket[7]; ok {
				t.Fatalf("doc 7 still present in band %d bucket %s after Remove", band, hash)
			}
		}
	}

	cands, err := idx.Candidates(sig)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if _, ok := cands[7]; ok {
		t.Error("removed document still returned as a candidate")
	}
}

func TestLoadBucketRehydratesWithoutRecomputing(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := idx.LoadBucket(2, "deadbeef", 99); err != nil {
		t.Fatalf("LoadBucket: %v", err)
	}
	if _, ok := idx.table[2]["deadbeef"][99]; !ok {
		t.Error("LoadBucket did not restore the bucket entry")
	}
}

func TestLoadBucketRejectsOutOfRangeBand(t *testing.T) {
	idx, err := New(4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := idx.LoadBucket(4, "abc", 1); err == nil {
		t.Error("expected an error for an out-of-range band index")
	}
}

// LSH recall monotonicity: near-identical documents (exact Jaccard
// >= 0.8) should be returned as candidates with high probability at
// the default B=16, R=8 configuration.
func TestCandidatesRecallForNearDuplicates(t *testing.T) {
	const bands, rows = 16, 8
	eng := minhash.New(bands*rows, 42)

	rng := rand.New(rand.NewSource(7))
	hits := 0
	const trials = 50

	for i := 0; i < trials; i++ {
		base := buildShingleSet(rng, 60)
		near := mutateSlightly(rng, base, 5) // similarity stays high

		idx, err := New(bands, rows)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		sigBase := eng.Signature(base)
		sigNear := eng.Signature(near)

		if err := idx.IndexDoc(1, sigBase); err != nil {
			t.Fatalf("IndexDoc: %v", err)
		}

		exact := text.Jaccard(base, near)
		if exact < 0.8 {
			continue
		}

		cands, err := idx.Candidates(sigNear)
		if err != nil {
			t.Fatalf("Candidates: %v", err)
		}
		if _, ok := cands[1]; ok {
			hits++
		}
	}

	if hits == 0 {
		t.Error("expected at least some near-duplicate pairs to be recalled as LSH candidates")
	}
}

func buildShingleSet(rng *rand.Rand, n int) map[string]struct{} {
	letters := "abcdefghijklmnopqrstuvwxyz"
	set := make(map[string]struct{}, n)
	for len(set) < n {
		buf := make([]byte, 5)
		for j := range buf {
			buf[j] = letters[rng.Intn(len(letters))]
		}
		set[string(buf)] = struct{}{}
	}
	return set
}

func mutateSlightly(rng *rand.Rand, base map[string]struct{}, dropCount int) map[string]struct{} {
	out := make(map[string]struct{}, len(base))
	for k := range base {
		out[k] = struct{}{}
	}
	i := 0
	for k := range out {
		if i >= dropCount {
			break
		}
		delete(out, k)
		i++
	}
	letters := "abcdefghijklmnopqrstuvwxyz"
	for i := 0; i < dropCount; i++ {
		buf := make([]byte, 5)
		for j := range buf {
			buf[j] = letters[rng.Intn(len(letters))]
		}
		out[string(buf)] = struct{}{}
	}
	return out
}
