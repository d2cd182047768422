// Package historystore is the persistent, SQLite-backed store keyed by
// normalised URL.
//
// sql.Open with the mattn/go-sqlite3 driver, CREATE TABLE IF NOT EXISTS,
// sql.NullString/sql.NullTime nullable scanning, and merge-semantics upserts
// (look up by normalized_url, then INSERT or UPDATE). WAL mode is enabled explicitly to support a
// single writer alongside concurrent readers.
package historystore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newsbrief/internal/domain"
)

// Store is the History Store. It owns the *sql.DB handle for its lifetime.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) the data directory and opens the SQLite database
// at dbPath, enabling WAL mode, and runs schema initialisation.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("historystore: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("historystore: open: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("historystore: enable WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	normalized_url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	source TEXT NOT NULL,
	first_seen_at DATETIME NOT NULL,
	last_seen_at DATETIME NOT NULL,
	published_at DATETIME,
	date_confidence TEXT,
	title_hash TEXT,
	content_hash TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_normalized_url ON history(normalized_url);
CREATE INDEX IF NOT EXISTS idx_history_first_seen_at ON history(first_seen_at);
CREATE INDEX IF NOT EXISTS idx_history_published_at ON history(published_at);
CREATE INDEX IF NOT EXISTS idx_history_source ON history(source);
CREATE INDEX IF NOT EXISTS idx_history_title_hash ON history(title_hash);
`)
	if err != nil {
		return fmt.Errorf("historystore: initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntry(row interface {
	Scan(dest ...any) error
}) (*domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	var published sql.NullTime
	var confidence sql.NullString
	var titleHash, contentHash sql.NullString
	if err := row.Scan(&e.URL, &e.NormalizedURL, &e.Title, &e.Source,
		&e.FirstSeenAt, &e.LastSeenAt, &published, &confidence, &titleHash, &contentHash); err != nil {
		return nil, err
	}
	if published.Valid {
		t := published.Time
		e.PublishedAt = &t
	}
	if confidence.Valid {
		e.DateConfidence = domain.DateConfidence(confidence.String)
	}
	e.TitleHash = titleHash.String
	e.ContentHash = contentHash.String
	return &e, nil
}

const selectCols = `url, normalized_url, title, source, first_seen_at, last_seen_at, published_at, date_confidence, title_hash, content_hash`

// FindByNormalizedURL returns the entry for u, or nil if absent.
func (s *Store) FindByNormalizedURL(u string) (*domain.HistoryEntry, error) {
	row := s.db.QueryRow(`SELECT `+selectCols+` FROM history WHERE normalized_url = ?`, u)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("historystore: find by normalized url: %w", err)
	}
	return e, nil
}

// FindExistingURLs performs a bulk existence test for Layer 1b.
func (s *Store) FindExistingURLs(urls []string) (map[string]bool, error) {
	result := map[string]bool{}
	if len(urls) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(urls))
	args := make([]any, len(urls))
	for i, u := range urls {
		placeholders[i] = "?"
		args[i] = u
	}
	query := fmt.Sprintf(`SELECT normalized_url FROM history WHERE normalized_url IN (%s)`, joinComma(placeholders))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("historystore: find existing urls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		result[u] = true
	}
	return result, rows.Err()
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// FindByTitleHash returns candidate entries sharing a title hash, for
// Layer-3 candidate narrowing.
func (s *Store) FindByTitleHash(hash string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT `+selectCols+` FROM history WHERE title_hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("historystore: find by title hash: %w", err)
	}
	defer rows.Close()
	var out []domain.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindByDateRange returns entries with first_seen_at in [since, until),
// descending by first_seen_at. A nil until means unbounded.
func (s *Store) FindByDateRange(since time.Time, until *time.Time) ([]domain.HistoryEntry, error) {
	query := `SELECT ` + selectCols + ` FROM history WHERE first_seen_at >= ?`
	args := []any{since}
	if until != nil {
		query += ` AND first_seen_at < ?`
		args = append(args, *until)
	}
	query += ` ORDER BY first_seen_at DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("historystore: find by date range: %w", err)
	}
	defer rows.Close()
	var out []domain.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindPotentialReposts returns entries where last_seen_at - first_seen_at is
// at least minGapDays.
func (s *Store) FindPotentialReposts(minGapDays int) ([]domain.HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT `+selectCols+` FROM history
		WHERE CAST(julianday(last_seen_at) - julianday(first_seen_at) AS INTEGER) >= ?`, minGapDays)
	if err != nil {
		return nil, fmt.Errorf("historystore: find potential reposts: %w", err)
	}
	defer rows.Close()
	var out []domain.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Upsert inserts entry if absent, else updates last_seen_at (always) and
// fills published_at/date_confidence/hashes only when previously empty.
// first_seen_at is immutable after insert.
func (s *Store) Upsert(entry domain.HistoryEntry) error {
	return s.upsertTx(s.db, entry)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) upsertTx(tx execer, entry domain.HistoryEntry) error {
	existing, err := findByNormalizedURLTx(tx, entry.NormalizedURL)
	if err != nil {
		return err
	}
	if existing == nil {
		var published any
		if entry.PublishedAt != nil {
			published = *entry.PublishedAt
		}
		_, err := tx.Exec(`
			INSERT INTO history (url, normalized_url, title, source, first_seen_at, last_seen_at, published_at, date_confidence, title_hash, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.URL, entry.NormalizedURL, entry.Title, entry.Source,
			entry.FirstSeenAt, entry.LastSeenAt, published, string(entry.DateConfidence), entry.TitleHash, entry.ContentHash)
		if err != nil {
			return fmt.Errorf("historystore: insert: %w", err)
		}
		return nil
	}

	lastSeen := entry.LastSeenAt
	published := existing.PublishedAt
	if published == nil && entry.PublishedAt != nil {
		published = entry.PublishedAt
	}
	confidence := existing.DateConfidence
	if confidence == "" && entry.DateConfidence != "" {
		confidence = entry.DateConfidence
	}
	titleHash := existing.TitleHash
	if titleHash == "" && entry.TitleHash != "" {
		titleHash = entry.TitleHash
	}
	contentHash := existing.ContentHash
	if contentHash == "" && entry.ContentHash != "" {
		contentHash = entry.ContentHash
	}
	var publishedArg any
	if published != nil {
		publishedArg = *published
	}
	_, err = tx.Exec(`
		UPDATE history SET last_seen_at = ?, published_at = ?, date_confidence = ?, title_hash = ?, content_hash = ?
		WHERE normalized_url = ?`,
		lastSeen, publishedArg, string(confidence), titleHash, contentHash, entry.NormalizedURL)
	if err != nil {
		return fmt.Errorf("historystore: update: %w", err)
	}
	return nil
}

func findByNormalizedURLTx(tx execer, u string) (*domain.HistoryEntry, error) {
	row := tx.QueryRow(`SELECT `+selectCols+` FROM history WHERE normalized_url = ?`, u)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// BulkUpsert applies Upsert to every entry inside a single transaction.
func (s *Store) BulkUpsert(entries []domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("historystore: begin bulk upsert: %w", err)
	}
	for _, e := range entries {
		if err := s.upsertTx(tx, e); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Cleanup deletes entries with first_seen_at before the cutoff (default:
// now - retentionDays) and returns the count removed. Comparisons use UTC
// throughout.
func (s *Store) Cleanup(before *time.Time, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if before != nil {
		cutoff = before.UTC()
	}
	res, err := s.db.Exec(`DELETE FROM history WHERE first_seen_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("historystore: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarises the store's contents.
type Stats struct {
	Total         int64
	MinFirstSeen  *time.Time
	MaxFirstSeen  *time.Time
	PerSourceCount map[string]int64
}

// GetStats returns totals, min/max first_seen_at, and per-source counts.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{PerSourceCount: map[string]int64{}}
	row := s.db.QueryRow(`SELECT COUNT(*), MIN(first_seen_at), MAX(first_seen_at) FROM history`)
	var min, max sql.NullString
	if err := row.Scan(&stats.Total, &min, &max); err != nil {
		return nil, fmt.Errorf("historystore: stats: %w", err)
	}
	// MIN/MAX are expressions without a declared column type, so the driver
	// returns them as text rather than time.Time.
	parse := func(v sql.NullString) *time.Time {
		for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano} {
			if t, err := time.Parse(layout, v.String); v.Valid && err == nil {
				u := t.UTC()
				return &u
			}
		}
		return nil
	}
	stats.MinFirstSeen = parse(min)
	stats.MaxFirstSeen = parse(max)
	rows, err := s.db.Query(`SELECT source, COUNT(*) FROM history GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("historystore: per-source stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var src string
		var count int64
		if err := rows.Scan(&src, &count); err != nil {
			return nil, err
		}
		stats.PerSourceCount[src] = count
	}
	return stats, rows.Err()
}
