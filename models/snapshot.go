package models

import "time"

// PageSnapshot is a locally cached copy of a rendered page. Snapshots double
// as a render cache (avoid paying for the same render twice in quick
// succession) and as the upload queue for the S3 archive.
type PageSnapshot struct {
	ID          int64     `json:"id" db:"id"`
	URL         string    `json:"url" db:"url"`
	FinalURL    string    `json:"final_url" db:"final_url"`
	HTML        string    `json:"html" db:"html"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Tier        string    `json:"tier" db:"tier"` // unblock, content
	S3Key       *string   `json:"s3_key" db:"s3_key"`
	Status      string    `json:"status" db:"status"` // pending, uploaded, failed
	Attempts    int       `json:"attempts" db:"attempts"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const (
	SnapshotStatusPending  = "pending"
	SnapshotStatusUploaded = "uploaded"
	SnapshotStatusFailed   = "failed"
)
