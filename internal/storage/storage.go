package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// batchSize caps how many objects a single batch removal call may carry.
const batchSize = 100

// BlobStore is the content store behind the file registry. Objects are
// addressed by an opaque key produced with ObjectKey; implementations perform
// no retries, failures surface to the caller.
type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
	PresignedGetURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	BatchDelete(ctx context.Context, keys []string) error
}

// ObjectKey derives the bucket key for a blob id, prefixed by content class so
// images, videos and everything else live under separate prefixes.
func ObjectKey(blobID, mimeType string) string {
	return contentClass(mimeType) + "/" + blobID
}

func contentClass(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	default:
		return "raw"
	}
}
