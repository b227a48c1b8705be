package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// LocalAssetStore serves artifacts from a directory on disk.
type LocalAssetStore struct {
	baseDir string
}

// NewLocalAssetStore returns a LocalAssetStore rooted at baseDir.
func NewLocalAssetStore(baseDir string) *LocalAssetStore {
	return &LocalAssetStore{baseDir: baseDir}
}

func (s *LocalAssetStore) Open(_ context.Context, key string) (io.ReadCloser, AssetInfo, error) {
	// Clean with a leading slash so "../" in a key cannot escape baseDir.
	rel := filepath.Clean("/" + key)
	path := filepath.Join(s.baseDir, rel)

	f, err := os.Open(path)
	if err != nil {
		return nil, AssetInfo{}, fmt.Errorf("asset %q: %w", key, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, AssetInfo{}, fmt.Errorf("asset %q: %w", key, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, AssetInfo{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Size:        stat.Size(),
	}, nil
}
