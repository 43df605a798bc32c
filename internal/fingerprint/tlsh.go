// Package fingerprint computes a secondary, structural fuzzy-hash
// digest for documents using TLSH. It is not part of the core
// MinHash/LSH candidate-retrieval path — the refine-threshold gate on
// the MinHash estimate is the sole authority for promoting a candidate
// to exact Jaccard comparison. TLSH distance is informational only,
// surfaced on the report as a structural-distance hint.
package fingerprint

import (
	"errors"

	"github.com/glaslos/tlsh"
)

// MinDataSize is the minimum content length TLSH needs for a
// meaningful digest.
const MinDataSize = 50

// ErrTooSmall is returned when content is shorter than MinDataSize.
var ErrTooSmall = errors.New("fingerprint: content too small for TLSH digest")

// Digest wraps a computed TLSH hash.
type Digest struct {
	hash *tlsh.TLSH
	raw  string
}

// String returns the TLSH digest's canonical hex encoding.
func (d *Digest) String() string {
	if d == nil {
		return ""
	}
	return d.raw
}

// Compute builds a TLSH digest for content. Short documents (below
// MinDataSize) have no TLSH digest — Compute returns ErrTooSmall and
// the caller treats the digest as absent (Distance reports -1); the
// document is still fully served by the MinHash/LSH path.
func Compute(content []byte) (*Digest, error) {
	if len(content) < MinDataSize {
		return nil, ErrTooSmall
	}

	h, err := tlsh.HashBytes(content)
	if err != nil {
		return nil, err
	}

	return &Digest{hash: h, raw: h.String()}, nil
}

// Distance returns the TLSH distance between two digests (0 =
// identical, larger = more different). Returns -1 if either digest is
// nil.
func Distance(a, b *Digest) int {
	if a == nil || b == nil || a.hash == nil || b.hash == nil {
		return -1
	}
	return a.hash.Diff(b.hash)
}

// Parse reconstructs a Digest from its persisted string form.
func Parse(raw string) (*Digest, error) {
	if raw == "" {
		return nil, nil
	}
	h, err := tlsh.ParseStringToTlsh(raw)
	if err != nil {
		return nil, err
	}
	return &Digest{hash: h, raw: raw}, nil
}
