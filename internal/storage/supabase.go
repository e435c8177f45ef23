package storage

import (
	"context"
	"fmt"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseDownloader reads objects from a Supabase Storage bucket.
type SupabaseDownloader struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseDownloader builds a client for projectURL/storage/v1 using the service key.
func NewSupabaseDownloader(projectURL, serviceKey, bucket string) *SupabaseDownloader {
	endpoint := strings.TrimRight(projectURL, "/") + "/storage/v1"
	return &SupabaseDownloader{
		client: storage_go.NewClient(endpoint, serviceKey, nil),
		bucket: bucket,
	}
}

// Download implements Downloader. The storage client is not context aware, so
// cancellation is only checked before the request.
func (d *SupabaseDownloader) Download(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := d.client.DownloadFile(d.bucket, strings.TrimPrefix(path, "/"))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		return nil, fmt.Errorf("download %s from bucket %s: %w", path, d.bucket, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, path, len(data))
	}
	return data, nil
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
