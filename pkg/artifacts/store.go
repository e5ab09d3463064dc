// Package artifacts stores generated exports and archived import uploads,
// either on the local disk or in a Google Cloud Storage bucket.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"p9e.in/lppsync/config"
)

// Store saves a named artifact and returns where it ended up.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// NewStore picks the bucket store when GCS is enabled, the local directory
// otherwise.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.UseGCS {
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("USE_GCS is set but GCS_BUCKET is empty")
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS client: %w", err)
		}
		return NewGCSStore(client, cfg.GCSBucket), nil
	}
	return NewLocalStore(cfg.OutputDir), nil
}

// Stamped prefixes name with a timestamp so repeated uploads do not collide.
func Stamped(name string, now time.Time) string {
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), cleanName(name))
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}

// LocalStore writes artifacts under a directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Put writes data to dir/name, creating parent directories as needed.
func (s *LocalStore) Put(_ context.Context, name string, data []byte) (string, error) {
	name = cleanName(name)
	if name == "" {
		return "", fmt.Errorf("empty artifact name")
	}
	dst := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	zap.L().Debug("Artifact stored", zap.String("path", dst), zap.Int("bytes", len(data)))
	return dst, nil
}

// GCSStore writes artifacts as objects of one bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

func (s *GCSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	name = cleanName(name)
	if name == "" {
		return "", fmt.Errorf("empty artifact name")
	}

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType(name)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", name, err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name)
	zap.L().Debug("Artifact uploaded", zap.String("url", url), zap.Int("bytes", len(data)))
	return url, nil
}

// Close releases the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
