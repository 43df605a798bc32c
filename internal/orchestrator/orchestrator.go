// Package orchestrator composes the normalizer, shingler, MinHash
// engine, LSH index, persistence store, and fragment finder into a
// single library surface: add, check, list, delete.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/simdex/simdex/internal/fingerprint"
	"github.com/simdex/simdex/internal/fragment"
	"github.com/simdex/simdex/internal/lsh"
	"github.com/simdex/simdex/internal/minhash"
	"github.com/simdex/simdex/internal/store"
	"github.com/simdex/simdex/internal/text"
	"github.com/simdex/simdex/pkg/report"
)

// ErrStore is returned for any persistence I/O failure.
var ErrStore = store.ErrStore

// ErrInvalidSignature is returned when comparing signatures of
// mismatched length — a programmer error, fatal to the operation.
var ErrInvalidSignature = minhash.ErrInvalidSignature

// Index is the orchestrator handle: the similarity index's full
// library surface. Construction parameters (path, signature
// dimensions, seed) are passed in explicitly; there is no
// process-wide singleton.
type Index struct {
	cfg     Config
	mh      *minhash.Engine
	lshIdx  *lsh.Index
	st      *store.Store
	pool    *ants.Pool
	limiter *rate.Limiter
	logger  *slog.Logger

	// mu guards the invariant that the in-memory LSH table and its
	// persisted bucket rows are updated in the same critical
	// section, so a concurrent Check never observes one without the
	// other. Writers (Add/Delete) take the write lock; Check only
	// needs the read lock for the instant it samples candidates out
	// of lshIdx.
	mu sync.RWMutex
}

// New constructs an Index against storePath, ensuring the store's
// relations exist and rehydrating the in-memory LSH table from
// persisted bucket rows. Zero-valued Config fields are filled from
// DefaultConfig before validation.
func New(cfg Config, logger *slog.Logger) (*Index, error) {
	def := DefaultConfig()
	if cfg.ShingleSize == 0 {
		cfg.ShingleSize = def.ShingleSize
	}
	if cfg.NumHashes == 0 {
		cfg.NumHashes = def.NumHashes
	}
	if cfg.NumBands == 0 {
		cfg.NumBands = def.NumBands
	}
	if cfg.RowsPerBand == 0 {
		cfg.RowsPerBand = def.RowsPerBand
	}
	if cfg.MinHashSeed == 0 {
		cfg.MinHashSeed = def.MinHashSeed
	}
	if cfg.RefineThreshold == 0 {
		cfg.RefineThreshold = def.RefineThreshold
	}
	if cfg.FragmentMinChars == 0 {
		cfg.FragmentMinChars = def.FragmentMinChars
	}
	if cfg.FragmentWindowWords == 0 {
		cfg.FragmentWindowWords = def.FragmentWindowWords
	}
	if cfg.TopK == 0 {
		cfg.TopK = def.TopK
	}
	if cfg.StorePath == "" {
		cfg.StorePath = def.StorePath
	}
	if cfg.RefineConcurrency == 0 {
		cfg.RefineConcurrency = def.RefineConcurrency
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	lshIdx, err := lsh.New(cfg.NumBands, cfg.RowsPerBand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	st, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return nil, err
	}

	if err := st.Rehydrate(lshIdx); err != nil {
		st.Close()
		return nil, err
	}

	pool, err := ants.NewPool(cfg.RefineConcurrency)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: refine pool: %v", ErrConfig, err)
	}

	var limiter *rate.Limiter
	if cfg.IngestRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.IngestRatePerSecond), 1)
	}

	return &Index{
		cfg:     cfg,
		mh:      minhash.New(cfg.NumHashes, cfg.MinHashSeed),
		lshIdx:  lshIdx,
		st:      st,
		pool:    pool,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Close releases the underlying store and refine pool.
func (idx *Index) Close() error {
	idx.pool.Release()
	return idx.st.Close()
}

// AddInput carries the fields a caller supplies to Add; document_id,
// word_count, and upload_date are assigned by the store.
type AddInput struct {
	Title    string
	Content  string
	Author   string
	Filename string
	Category string
}

// Add persists a new document, computes its signature, and indexes it
// for future candidate retrieval. It is atomic: a failure leaves
// neither a partial document row nor a dangling LSH entry.
func (idx *Index) Add(in AddInput) (uint64, error) {
	if idx.limiter != nil {
		_ = idx.limiter.Wait(context.Background())
	}

	category := in.Category
	if category == "" {
		category = "uncategorized"
	}

	normalized := text.Normalize(in.Content)
	shingles := text.Shingles(normalized, idx.cfg.ShingleSize)
	sig := idx.mh.Signature(shingles)

	bandHashes := make([]string, idx.cfg.NumBands)
	for b := 0; b < idx.cfg.NumBands; b++ {
		bandHashes[b] = lsh.BandHash(idx.lshIdx.BandSlice(sig, b))
	}

	doc := store.Document{
		Title:      in.Title,
		Author:     in.Author,
		Filename:   in.Filename,
		Content:    in.Content,
		WordCount:  uint32(text.WordCount(normalized)),
		UploadDate: time.Now(),
		Category:   category,
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	id, err := idx.st.AddDocument(doc, sig, uint32(len(shingles)), bandHashes)
	if err != nil {
		return 0, err
	}

	if err := idx.lshIdx.IndexDoc(id, sig); err != nil {
		// Indexing failed after a successful persist (shouldn't
		// happen outside a configuration bug); roll back the
		// persisted row so the store and index never diverge.
		if _, delErr := idx.st.DeleteDocument(id); delErr != nil {
			idx.logger.Warn("rollback after failed index insert also failed", "document_id", id, "error", delErr)
		}
		return 0, fmt.Errorf("%w: index insert: %v", ErrConfig, err)
	}

	idx.logger.Info("document added", "document_id", id, "shingles", len(shingles))
	return id, nil
}

// Check computes the query's signature, retrieves LSH candidates,
// refines them to exact Jaccard where the MinHash estimate clears
// refine_threshold, extracts overlapping fragments for each refined
// candidate, and ranks the top_k results.
func (idx *Index) Check(content string, topK int) (report.Report, error) {
	if topK <= 0 {
		topK = idx.cfg.TopK
	}

	normalized := text.Normalize(content)
	queryShingles := text.Shingles(normalized, idx.cfg.ShingleSize)
	querySig := idx.mh.Signature(queryShingles)

	idx.mu.RLock()
	candidateIDs, err := idx.lshIdx.Candidates(querySig)
	total, listErr := idx.st.List()
	idx.mu.RUnlock()

	if err != nil {
		return report.Report{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if listErr != nil {
		return report.Report{}, listErr
	}

	if len(candidateIDs) == 0 {
		return report.Report{
			UniquenessScore:       100.0,
			TotalDocumentsChecked: len(total),
			CandidatesFound:       0,
			SimilarDocuments:      nil,
			MatchingFragments:     nil,
		}, nil
	}

	queryDigest, _ := fingerprint.Compute([]byte(content))
	queryFreq := text.ShingleFrequency(normalized, idx.cfg.ShingleSize)

	type refined struct {
		doc report.SimilarDocument
		ok  bool
	}

	results := make([]refined, len(candidateIDs))
	ids := make([]uint64, 0, len(candidateIDs))
	for id := range candidateIDs {
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	for i, candID := range ids {
		i, candID := i, candID
		wg.Add(1)
		task := func() {
			defer wg.Done()
			sd, ok, rerr := idx.refineCandidate(candID, querySig, queryShingles, queryFreq, queryDigest, content)
			if rerr != nil {
				idx.logger.Warn("skipping corrupt candidate", "document_id", candID, "error", rerr)
				return
			}
			results[i] = refined{doc: sd, ok: ok}
		}
		if err := idx.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	var similar []report.SimilarDocument
	for _, r := range results {
		if r.ok {
			similar = append(similar, r.doc)
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Similarity > similar[j].Similarity
	})

	if len(similar) > topK {
		similar = similar[:topK]
	}

	maxSim := 0.0
	var topFragments []report.Fragment
	if len(similar) > 0 {
		maxSim = similar[0].Similarity
		topFragments = similar[0].MatchingFragments
	}

	for i := range similar {
		if err := idx.st.RecordComparison(store.ComparisonResult{
			ComparedDocID:   similar[i].DocumentID,
			SimilarityScore: similar[i].Similarity,
			ComparisonDate:  time.Now(),
		}); err != nil {
			idx.logger.Warn("comparison cache write failed", "document_id", similar[i].DocumentID, "error", err)
		}
	}

	uniqueness := round2(100 - maxSim)
	if uniqueness < 0 {
		uniqueness = 0
	}

	return report.Report{
		UniquenessScore:       uniqueness,
		TotalDocumentsChecked: len(total),
		CandidatesFound:       len(candidateIDs),
		SimilarDocuments:      similar,
		MatchingFragments:     topFragments,
	}, nil
}

// refineCandidate loads a candidate's stored content and signature,
// estimates similarity, and — above refine_threshold — computes exact
// Jaccard and extracts overlapping fragments.
func (idx *Index) refineCandidate(
	candID uint64,
	querySig []uint32,
	queryShingles map[string]struct{},
	queryFreq map[string]int,
	queryDigest *fingerprint.Digest,
	queryContent string,
) (report.SimilarDocument, bool, error) {
	fp, err := idx.st.GetFingerprint(candID)
	if err != nil {
		return report.SimilarDocument{}, false, err
	}
	doc, err := idx.st.GetDocument(candID)
	if err != nil {
		return report.SimilarDocument{}, false, err
	}

	estimate, err := idx.mh.Estimate(querySig, fp.Signature)
	if err != nil {
		return report.SimilarDocument{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if estimate <= idx.cfg.RefineThreshold {
		return report.SimilarDocument{}, false, nil
	}

	candNormalized := text.Normalize(doc.Content)
	candShingles := text.Shingles(candNormalized, idx.cfg.ShingleSize)
	exact := text.Jaccard(queryShingles, candShingles)

	fragments := fragment.Find(queryContent, doc.Content, idx.cfg.FragmentMinChars, idx.cfg.FragmentWindowWords)
	if len(fragments) > 5 {
		fragments = fragments[:5]
	}

	reportFragments := make([]report.Fragment, len(fragments))
	for i, f := range fragments {
		reportFragments[i] = report.Fragment{
			Text:         f.Text,
			PositionDoc1: f.PositionDoc1,
			PositionDoc2: f.PositionDoc2,
			Length:       f.Length,
		}
	}

	structDist := -1
	if queryDigest != nil {
		if candDigest, derr := fingerprint.Compute([]byte(doc.Content)); derr == nil {
			structDist = fingerprint.Distance(queryDigest, candDigest)
		}
	}

	candFreq := text.ShingleFrequency(candNormalized, idx.cfg.ShingleSize)
	cosine := text.Cosine(queryFreq, candFreq)

	return report.SimilarDocument{
		DocumentID:         candID,
		Title:              doc.Title,
		Author:             doc.Author,
		Similarity:         round2(exact * 100),
		StructuralDistance: structDist,
		CosineHint:         round2(cosine * 100),
		MatchingFragments:  reportFragments,
	}, true, nil
}

// ListFilter narrows List results. A nil filter or empty Category
// returns every document.
type ListFilter struct {
	Category string
}

// List returns every document summary ordered by upload_date
// descending, optionally narrowed to one category.
func (idx *Index) List(filter *ListFilter) ([]store.Summary, error) {
	all, err := idx.st.List()
	if err != nil {
		return nil, err
	}
	if filter == nil || filter.Category == "" {
		return all, nil
	}

	var out []store.Summary
	for _, s := range all {
		if s.Category == filter.Category {
			out = append(out, s)
		}
	}
	return out, nil
}

// Delete removes a document and cascades to its fingerprint and
// bucket rows. Returns false, nil if no such document existed.
func (idx *Index) Delete(id uint64) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ok, err := idx.st.DeleteDocument(id)
	if err != nil {
		return false, err
	}
	if ok {
		idx.lshIdx.Remove(id)
		idx.logger.Info("document deleted", "document_id", id)
	}
	return ok, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// Stats is a point-in-time snapshot of corpus size and LSH band
// occupancy, consumed by the watch TUI and the web driver's status
// endpoint.
type Stats struct {
	DocumentCount    int
	BandBucketCounts []int
}

// Stats reports corpus size and per-band bucket occupancy.
func (idx *Index) Stats() (Stats, error) {
	docs, err := idx.st.List()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		DocumentCount:    len(docs),
		BandBucketCounts: idx.lshIdx.BandBucketCounts(),
	}, nil
}
