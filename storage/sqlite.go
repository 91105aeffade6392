package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"unit_scanner/models"
)

// SQLiteStore holds operational data that never needs to leave the host:
// cached page snapshots and the S3 upload queue.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS page_snapshots (
		id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		final_url TEXT,
		html TEXT,
		content_hash TEXT,
		tier TEXT,
		s3_key TEXT,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		created_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_url ON page_snapshots(url, created_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_status ON page_snapshots(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetFreshSnapshot returns the most recent snapshot for a URL if it is newer
// than ttl, or nil when the cache has nothing usable.
func (s *SQLiteStore) GetFreshSnapshot(url string, ttl time.Duration) (*models.PageSnapshot, error) {
	query := `
		SELECT id, url, COALESCE(final_url, ''), COALESCE(html, ''), COALESCE(content_hash, ''),
			COALESCE(tier, ''), s3_key, status, attempts, created_at
		FROM page_snapshots
		WHERE url = ? AND created_at > ?
		ORDER BY created_at DESC
		LIMIT 1`

	cutoff := time.Now().Add(-ttl)

	var snap models.PageSnapshot
	err := s.db.QueryRow(query, url, cutoff).Scan(
		&snap.ID, &snap.URL, &snap.FinalURL, &snap.HTML, &snap.ContentHash,
		&snap.Tier, &snap.S3Key, &snap.Status, &snap.Attempts, &snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) SaveSnapshot(snap *models.PageSnapshot) error {
	query := `
		INSERT INTO page_snapshots (url, final_url, html, content_hash, tier, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`

	res, err := s.db.Exec(query,
		snap.URL, snap.FinalURL, snap.HTML, snap.ContentHash, snap.Tier, snap.Status, snap.CreatedAt,
	)
	if err != nil {
		return err
	}

	snap.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetPendingSnapshots(limit int) ([]models.PageSnapshot, error) {
	query := `
		SELECT id, url, COALESCE(final_url, ''), COALESCE(html, ''), COALESCE(content_hash, ''),
			COALESCE(tier, ''), s3_key, status, attempts, created_at
		FROM page_snapshots
		WHERE status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []models.PageSnapshot
	for rows.Next() {
		var snap models.PageSnapshot
		if err := rows.Scan(
			&snap.ID, &snap.URL, &snap.FinalURL, &snap.HTML, &snap.ContentHash,
			&snap.Tier, &snap.S3Key, &snap.Status, &snap.Attempts, &snap.CreatedAt,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *SQLiteStore) MarkSnapshotUploaded(id int64, s3Key string) error {
	_, err := s.db.Exec(
		`UPDATE page_snapshots SET status = ?, s3_key = ? WHERE id = ?`,
		models.SnapshotStatusUploaded, s3Key, id,
	)
	return err
}

func (s *SQLiteStore) MarkSnapshotFailed(id int64, attempts int) error {
	status := models.SnapshotStatusPending
	if attempts >= 3 {
		status = models.SnapshotStatusFailed
	}
	_, err := s.db.Exec(
		`UPDATE page_snapshots SET status = ?, attempts = ? WHERE id = ?`,
		status, attempts, id,
	)
	return err
}
