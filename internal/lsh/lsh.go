// Package lsh implements a Locality-Sensitive Hashing band index over
// MinHash signatures: documents sharing a band hash are candidates for
// exact comparison, letting a query avoid scanning the full corpus.
package lsh

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidParams is returned by New when bands or rows is not positive.
var ErrInvalidParams = errors.New("lsh: bands and rows must be positive")

// ErrSizeMismatch is returned when a signature's length does not equal bands*rows.
var ErrSizeMismatch = errors.New("lsh: signature length must equal bands*rows")

// Index is a thread-safe band index: table[b] maps a band hash to the
// set of document ids whose signature produced that hash in band b.
type Index struct {
	mu    sync.RWMutex
	bands int
	rows  int
	table []map[string]map[uint64]struct{}
}

// New creates an Index for signatures of length bands*rows.
func New(bands, rows int) (*Index, error) {
	if bands <= 0 || rows <= 0 {
		return nil, ErrInvalidParams
	}

	table := make([]map[string]map[uint64]struct{}, bands)
	for i := range table {
		table[i] = make(map[string]map[uint64]struct{})
	}

	return &Index{bands: bands, rows: rows, table: table}, nil
}

// Bands reports the configured band count B.
func (idx *Index) Bands() int { return idx.bands }

// Rows reports the configured rows-per-band count R.
func (idx *Index) Rows() int { return idx.rows }

// BandHash computes the canonical band-hash digest for a signature
// slice: the decimal representation of each value joined by ",",
// MD5-hashed to a hex digest. This encoding must stay byte-for-byte
// stable — two processes inserting and querying the same band must
// agree on it, and it is also the persisted bucket_hash.
func BandHash(slice []uint32) string {
	parts := make([]string, len(slice))
	for i, v := range slice {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// bandHashes computes the per-band digest for every band of sig.
func (idx *Index) bandHashes(sig []uint32) ([]string, error) {
	if len(sig) != idx.bands*idx.rows {
		return nil, ErrSizeMismatch
	}

	hashes := make([]string, idx.bands)
	for band := 0; band < idx.bands; band++ {
		start := band * idx.rows
		hashes[band] = BandHash(sig[start : start+idx.rows])
	}
	return hashes, nil
}

// IndexDoc inserts docID keyed by every band hash of sig.
func (idx *Index) IndexDoc(docID uint64, sig []uint32) error {
	hashes, err := idx.bandHashes(sig)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for band, h := range hashes {
		bucket := idx.table[band][h]
		if bucket == nil {
			bucket = make(map[uint64]struct{})
			idx.table[band][h] = bucket
		}
		bucket[docID] = struct{}{}
	}

	return nil
}

// LoadBucket restores a single persisted bucket entry into the
// in-memory table, used during startup rehydration. It does not
// recompute the band hash — it trusts the persisted one.
func (idx *Index) LoadBucket(band int, bucketHash string, docID uint64) error {
	if band < 0 || band >= idx.bands {
		return fmt.Errorf("lsh: band %d out of range [0,%d)", band, idx.bands)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	bucket := idx.table[band][bucketHash]
	if bucket == nil {
		bucket = make(map[uint64]struct{})
		idx.table[band][bucketHash] = bucket
	}
	bucket[docID] = struct{}{}

	return nil
}

// Candidates returns the set of document ids sharing at least one
// band hash with sig. The query document itself is not excluded here
// — the orchestrator removes self-matches where relevant.
func (idx *Index) Candidates(sig []uint32) (map[uint64]struct{}, error) {
	hashes, err := idx.bandHashes(sig)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[uint64]struct{})
	for band, h := range hashes {
		for docID := range idx.table[band][h] {
			out[docID] = struct{}{}
		}
	}
	return out, nil
}

// Remove deletes docID from every band bucket it appears in. It does
// not touch persistence; the caller is responsible for keeping the
// persisted bucket rows consistent with this call under the same
// critical section.
func (idx *Index) Remove(docID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, band := range idx.table {
		for hash, bucket := range band {
			delete(bucket, docID)
			if len(bucket) == 0 {
				delete(band, hash)
			}
		}
	}
}

// BandSlice returns the [start,end) slice of sig belonging to band b,
// exported for callers (store persistence) that need to compute the
// same per-band hash without going through IndexDoc.
func (idx *Index) BandSlice(sig []uint32, band int) []uint32 {
	start := band * idx.rows
	return sig[start : start+idx.rows]
}

// BandBucketCounts returns, for each band, the number of distinct
// non-empty buckets currently held — a coarse occupancy measure used
// by the watch TUI to render a per-band fill histogram.
func (idx *Index) BandBucketCounts() []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	counts := make([]int, idx.bands)
	for b, band := range idx.table {
		counts[b] = len(band)
	}
	return counts
}
