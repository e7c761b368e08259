package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"ledgersync/services/source"

	"github.com/minio/minio-go/v7"
)

// Archiver keeps a raw copy of each fetched batch.
type Archiver interface {
	Archive(ctx context.Context, run *SyncRun, batch *source.Batch) error
}

type nopArchiver struct{}

func (nopArchiver) Archive(context.Context, *SyncRun, *source.Batch) error { return nil }

func NopArchiver() Archiver {
	return nopArchiver{}
}

type MinioArchiver struct {
	client *minio.Client
	bucket string
}

func NewMinioArchiver(client *minio.Client, bucket string) *MinioArchiver {
	return &MinioArchiver{client: client, bucket: bucket}
}

// ArchiveKey returns sync-runs/YYYY/MM/DD/<run id>.json.
func ArchiveKey(run *SyncRun) string {
	return fmt.Sprintf("sync-runs/%s/%s.json", run.StartedAt.UTC().Format("2006/01/02"), run.ID)
}

func (a *MinioArchiver) Archive(ctx context.Context, run *SyncRun, batch *source.Batch) error {
	payload, err := json.Marshal(map[string]any{
		"run":   run,
		"batch": batch,
	})
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, a.bucket, ArchiveKey(run), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
