// Package store provides durable persistence for documents, their
// MinHash fingerprints, and LSH bucket entries, backed by SQLite.
//
// The store owns no process-wide state: every caller constructs its
// own *Store against an explicit file path. There is no global
// database path and no singleton.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/simdex/simdex/internal/lsh"
)

// ErrStore wraps any persistence I/O failure surfaced to callers.
var ErrStore = errors.New("store: persistence failure")

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Document is the persisted row for one corpus entry. Documents are
// never mutated after creation: content is the basis of the
// signature, so any content change would invalidate it.
type Document struct {
	ID         uint64
	Title      string
	Author     string
	Filename   string
	Content    string
	WordCount  uint32
	UploadDate time.Time
	Category   string
}

// Summary is the list-view projection of Document (no content body).
type Summary struct {
	ID         uint64
	Title      string
	Author     string
	Filename   string
	WordCount  uint32
	UploadDate time.Time
	Category   string
}

// Fingerprint is the persisted MinHash signature for one document.
type Fingerprint struct {
	DocumentID  uint64
	Signature   []uint32
	NumShingles uint32
}

// ComparisonResult is a write-through, non-authoritative cache row
// recording the outcome of a check against a stored document.
type ComparisonResult struct {
	QueryDocumentID  *uint64
	ComparedDocID    uint64
	SimilarityScore  float64
	MatchingShingles *uint32
	ComparisonDate   time.Time
}

// Store is the durable handle for one corpus. Writers
// (AddDocument/DeleteDocument) are serialized against each other by
// mu; readers (List/GetDocument/GetFingerprint/Rehydrate) do not take
// mu and share the single open connection with the writers. Store
// never touches the in-memory LSH table: the caller keeps that table
// and the bucket rows in step under its own lock.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the SQLite file at path, ensures every
// relation and index this package depends on exists, and returns a
// handle. It does not rehydrate the LSH index — call Rehydrate for
// that.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStore, path, err)
	}
	db.SetMaxOpenConns(1) // single-writer sqlite file; avoid SQLITE_BUSY under this process

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT,
			filename TEXT,
			content TEXT NOT NULL,
			word_count INTEGER NOT NULL,
			upload_date TIMESTAMP NOT NULL,
			category TEXT NOT NULL DEFAULT 'uncategorized'
		)`,
		`CREATE TABLE IF NOT EXISTS fingerprints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			signature_blob TEXT NOT NULL,
			num_shingles INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lsh_buckets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			band_id INTEGER NOT NULL,
			bucket_hash TEXT NOT NULL,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lsh_buckets_band_hash ON lsh_buckets(band_id, bucket_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_lsh_buckets_document ON lsh_buckets(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_document ON fingerprints(document_id)`,
		`CREATE TABLE IF NOT EXISTS comparison_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query_document_id INTEGER,
			compared_document_id INTEGER NOT NULL,
			similarity_score REAL NOT NULL,
			matching_shingles INTEGER,
			comparison_date TIMESTAMP NOT NULL
		)`,
		`PRAGMA foreign_keys = ON`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", ErrStore, err)
		}
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddDocument persists a document, its fingerprint, and its B band
// bucket rows atomically: either all three commit, or none do.
// bandHashes[b] is the bucket hash for band b, one entry per configured
// band.
func (s *Store) AddDocument(doc Document, sig []uint32, numShingles uint32, bandHashes []string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO documents (title, author, filename, content, word_count, upload_date, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.Title, doc.Author, doc.Filename, doc.Content, doc.WordCount, doc.UploadDate, doc.Category,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert document: %v", ErrStore, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", ErrStore, err)
	}

	blob, err := json.Marshal(sig)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal signature: %v", ErrStore, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO fingerprints (document_id, signature_blob, num_shingles) VALUES (?, ?, ?)`,
		id, string(blob), numShingles,
	); err != nil {
		return 0, fmt.Errorf("%w: insert fingerprint: %v", ErrStore, err)
	}

	for band, hash := range bandHashes {
		if _, err := tx.Exec(
			`INSERT INTO lsh_buckets (band_id, bucket_hash, document_id) VALUES (?, ?, ?)`,
			band, hash, id,
		); err != nil {
			return 0, fmt.Errorf("%w: insert bucket row: %v", ErrStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStore, err)
	}

	s.logger.Info("document persisted", "document_id", id, "bands", len(bandHashes))
	return uint64(id), nil
}

// DeleteDocument removes a document and cascades to its fingerprint
// and bucket rows. Returns false, nil if no such document existed.
func (s *Store) DeleteDocument(id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("%w: delete document: %v", ErrStore, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrStore, err)
	}

	// Explicit cascade in case the driver build lacks FK enforcement.
	if n > 0 {
		if _, err := s.db.Exec(`DELETE FROM fingerprints WHERE document_id = ?`, id); err != nil {
			return false, fmt.Errorf("%w: cascade fingerprint: %v", ErrStore, err)
		}
		if _, err := s.db.Exec(`DELETE FROM lsh_buckets WHERE document_id = ?`, id); err != nil {
			return false, fmt.Errorf("%w: cascade buckets: %v", ErrStore, err)
		}
	}

	return n > 0, nil
}

// GetDocument loads a full document row by id.
func (s *Store) GetDocument(id uint64) (Document, error) {
	var d Document
	row := s.db.QueryRow(
		`SELECT id, title, author, filename, content, word_count, upload_date, category
		 FROM documents WHERE id = ?`, id,
	)

	var author, filename sql.NullString
	if err := row.Scan(&d.ID, &d.Title, &author, &filename, &d.Content, &d.WordCount, &d.UploadDate, &d.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("%w: get document: %v", ErrStore, err)
	}
	d.Author = author.String
	d.Filename = filename.String

	return d, nil
}

// GetFingerprint loads the signature and shingle count for a document.
func (s *Store) GetFingerprint(id uint64) (Fingerprint, error) {
	var blob string
	var fp Fingerprint
	fp.DocumentID = id

	row := s.db.QueryRow(
		`SELECT signature_blob, num_shingles FROM fingerprints WHERE document_id = ?`, id,
	)
	if err := row.Scan(&blob, &fp.NumShingles); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Fingerprint{}, ErrNotFound
		}
		return Fingerprint{}, fmt.Errorf("%w: get fingerprint: %v", ErrStore, err)
	}

	if err := json.Unmarshal([]byte(blob), &fp.Signature); err != nil {
		return Fingerprint{}, fmt.Errorf("%w: unmarshal signature: %v", ErrStore, err)
	}

	return fp, nil
}

// List returns every document summary ordered by upload_date descending.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT id, title, author, filename, word_count, upload_date, category
		 FROM documents ORDER BY upload_date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStore, err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var author, filename sql.NullString
		if err := rows.Scan(&sm.ID, &sm.Title, &author, &filename, &sm.WordCount, &sm.UploadDate, &sm.Category); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStore, err)
		}
		sm.Author = author.String
		sm.Filename = filename.String
		out = append(out, sm)
	}

	return out, rows.Err()
}

// Rehydrate streams every persisted bucket row into idx, restoring the
// in-memory LSH table after a restart.
func (s *Store) Rehydrate(idx *lsh.Index) error {
	rows, err := s.db.Query(`SELECT band_id, bucket_hash, document_id FROM lsh_buckets`)
	if err != nil {
		return fmt.Errorf("%w: rehydrate query: %v", ErrStore, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var band int
		var hash string
		var docID uint64
		if err := rows.Scan(&band, &hash, &docID); err != nil {
			return fmt.Errorf("%w: rehydrate scan: %v", ErrStore, err)
		}
		if err := idx.LoadBucket(band, hash, docID); err != nil {
			return fmt.Errorf("%w: rehydrate load: %v", ErrStore, err)
		}
		count++
	}

	s.logger.Info("rehydrated LSH index", "bucket_rows", count)
	return rows.Err()
}

// RecordComparison writes a comparison outcome to the non-authoritative cache.
func (s *Store) RecordComparison(r ComparisonResult) error {
	_, err := s.db.Exec(
		`INSERT INTO comparison_results (query_document_id, compared_document_id, similarity_score, matching_shingles, comparison_date)
		 VALUES (?, ?, ?, ?, ?)`,
		r.QueryDocumentID, r.ComparedDocID, r.SimilarityScore, r.MatchingShingles, r.ComparisonDate,
	)
	if err != nil {
		return fmt.Errorf("%w: record comparison: %v", ErrStore, err)
	}
	return nil
}
