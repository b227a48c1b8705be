package storage

import (
	"context"
	"io"
)

// AssetInfo describes an artifact to be released to an authorized download.
type AssetInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// AssetStore abstracts where the protected artifacts live. The local
// filesystem implementation can be swapped for S3 / R2 without touching
// the download handler.
type AssetStore interface {
	// Open returns the artifact bytes for key, or an error if the key does
	// not resolve to a readable asset.
	Open(ctx context.Context, key string) (io.ReadCloser, AssetInfo, error)
}
