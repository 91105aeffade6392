package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"unit_scanner/storage"
)

// Uploader pushes snapshot HTML to S3-compatible storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// NoOpUploader discards uploads; used when no archive bucket is configured.
type NoOpUploader struct{}

func NewNoOpUploader() *NoOpUploader { return &NoOpUploader{} }

func (*NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	return nil
}

// SnapshotWorker drains the local snapshot queue into the S3 archive so scan
// debug payloads can reference the raw rendered HTML later.
type SnapshotWorker struct {
	store    *storage.SQLiteStore
	uploader Uploader
}

func NewSnapshotWorker(store *storage.SQLiteStore, uploader Uploader) *SnapshotWorker {
	return &SnapshotWorker{store: store, uploader: uploader}
}

func (w *SnapshotWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-ctx.Done():
			return
		}
	}
}

func (w *SnapshotWorker) processBatch(ctx context.Context, batchSize int) {
	snaps, err := w.store.GetPendingSnapshots(batchSize)
	if err != nil {
		log.Printf("Snapshot worker: get pending: %v", err)
		return
	}

	for _, snap := range snaps {
		if len(snap.ContentHash) < 2 {
			if err := w.store.MarkSnapshotFailed(snap.ID, 3); err != nil {
				log.Printf("Snapshot worker: mark failed: %v", err)
			}
			continue
		}
		key := fmt.Sprintf("snapshots/%s/%s.html", snap.ContentHash[:2], snap.ContentHash)

		if err := w.uploader.Upload(ctx, key, strings.NewReader(snap.HTML), "text/html"); err != nil {
			log.Printf("Snapshot worker: upload %s: %v", snap.URL, err)
			if err := w.store.MarkSnapshotFailed(snap.ID, snap.Attempts+1); err != nil {
				log.Printf("Snapshot worker: mark failed: %v", err)
			}
			continue
		}

		if err := w.store.MarkSnapshotUploaded(snap.ID, key); err != nil {
			log.Printf("Snapshot worker: mark uploaded: %v", err)
		}
	}

	if len(snaps) > 0 {
		log.Printf("Snapshot worker: processed %d snapshots", len(snaps))
	}
}
