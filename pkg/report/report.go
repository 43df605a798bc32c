// Package report defines the structured output of a similarity check.
package report

// Fragment is one overlapping text run found between the query and a
// similar stored document.
type Fragment struct {
	Text         string `json:"text"`
	PositionDoc1 int    `json:"position_doc1"`
	PositionDoc2 int    `json:"position_doc2"`
	Length       int    `json:"length"`
}

// SimilarDocument is one ranked result in a Report.
type SimilarDocument struct {
	DocumentID uint64     `json:"document_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author,omitempty"`
	Similarity float64    `json:"similarity"`

	// StructuralDistance is the TLSH distance between the query and
	// this document, both digested from their content at check time,
	// -1 if either side has no digest
	// (content too short). It is a read-only hint, never used to
	// rank or filter results.
	StructuralDistance int `json:"structural_distance,omitempty"`

	// CosineHint is a secondary, non-ranking similarity signal over
	// shingle term-frequency vectors.
	CosineHint        float64    `json:"cosine_hint,omitempty"`
	MatchingFragments []Fragment `json:"matching_fragments,omitempty"`
}

// Report is the result of checking one piece of content against the corpus.
type Report struct {
	UniquenessScore       float64           `json:"uniqueness_score"`
	TotalDocumentsChecked int               `json:"total_documents_checked"`
	CandidatesFound       int               `json:"candidates_found"`
	SimilarDocuments      []SimilarDocument `json:"similar_documents"`
	MatchingFragments     []Fragment        `json:"matching_fragments"`
}
