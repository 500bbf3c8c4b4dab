// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// GCSProvider uploads artifacts to a Google Cloud Storage bucket.
type GCSProvider struct {
	client *storage.Client
	bucket string
}

// NewGCSProvider builds a GCSProvider writing into the named bucket.
func NewGCSProvider(ctx context.Context, bucket string) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud: build gcs client: %w", err)
	}
	return &GCSProvider{client: client, bucket: bucket}, nil
}

// Upload streams localPath to gs://bucket/key and returns the gs:// URL.
func (p *GCSProvider) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("cloud: open %q: %w", localPath, err)
	}
	defer f.Close()

	obj := p.client.Bucket(p.bucket).Object(key)
	writer := obj.NewWriter(ctx)
	if _, err := io.Copy(writer, f); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("cloud: upload %q: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("cloud: finalize upload %q: %w", key, err)
	}

	return fmt.Sprintf("gs://%s/%s", p.bucket, key), nil
}

// Close releases the underlying GCS client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}

// LocalProvider copies artifacts into a configured directory and returns a
// file:// URL, used in tests and when no bucket is configured.
type LocalProvider struct {
	dir string
}

// NewLocalProvider builds a LocalProvider rooted at dir.
func NewLocalProvider(dir string) *LocalProvider { return &LocalProvider{dir: dir} }

// Upload copies localPath to dir/key and returns a file:// URL.
func (p *LocalProvider) Upload(_ context.Context, localPath, key string) (string, error) {
	dest := filepath.Join(p.dir, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("cloud: create destination directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("cloud: open %q: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("cloud: create %q: %w", dest, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("cloud: copy %q: %w", key, err)
	}

	return "file://" + dest, nil
}
