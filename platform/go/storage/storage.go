// Package storage reads migration bundles from an embedded filesystem, a local directory or a GCS bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned when a key has no backing object.
var ErrObjectNotFound = errors.New("object not found")

// Reader is the read-only view the migration loader needs.
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
	// Check verifies the source is reachable without reading a specific object.
	Check(ctx context.Context) error
}

// ObjectLocation describes where a blob lives.
type ObjectLocation struct {
	Bucket   string
	FullPath string
}

// ResolveObjectLocation joins a bucket prefix and a logical key such as "premium/manifest.yaml".
func ResolveObjectLocation(bucket, prefix, logicalKey string) (ObjectLocation, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ObjectLocation{}, fmt.Errorf("bucket is required")
	}
	key := strings.TrimPrefix(strings.TrimSpace(logicalKey), "/")
	if key == "" {
		return ObjectLocation{}, fmt.Errorf("logical key is required")
	}
	if strings.Contains(key, "..") {
		return ObjectLocation{}, fmt.Errorf("logical key %q escapes prefix", logicalKey)
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ObjectLocation{Bucket: bucket, FullPath: key}, nil
	}
	return ObjectLocation{Bucket: bucket, FullPath: prefix + "/" + key}, nil
}

// FSReader serves keys from an fs.FS rooted at Root.
type FSReader struct {
	FS   fs.FS
	Root string
}

// NewFSReader wraps fsys; root may be empty.
func NewFSReader(fsys fs.FS, root string) *FSReader {
	if fsys == nil {
		panic("fs reader requires a filesystem")
	}
	return &FSReader{FS: fsys, Root: strings.Trim(root, "/")}
}

func (r *FSReader) Read(_ context.Context, key string) ([]byte, error) {
	name := strings.TrimPrefix(key, "/")
	if r.Root != "" {
		name = path.Join(r.Root, name)
	}
	data, err := fs.ReadFile(r.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (r *FSReader) Check(context.Context) error {
	root := r.Root
	if root == "" {
		root = "."
	}
	if _, err := fs.Stat(r.FS, root); err != nil {
		return fmt.Errorf("stat bundle root: %w", err)
	}
	return nil
}

// GCSReader reads objects under Prefix in Bucket.
type GCSReader struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

// NewGCSReader builds a GCS-backed Reader.
func NewGCSReader(client *storage.Client, bucket, prefix string) *GCSReader {
	if client == nil {
		panic("gcs reader requires client")
	}
	if bucket == "" {
		panic("gcs reader requires bucket")
	}
	return &GCSReader{Client: client, Bucket: bucket, Prefix: prefix}
}

func (r *GCSReader) Read(ctx context.Context, key string) ([]byte, error) {
	loc, err := ResolveObjectLocation(r.Bucket, r.Prefix, key)
	if err != nil {
		return nil, err
	}

	rd, err := r.Client.Bucket(loc.Bucket).Object(loc.FullPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", loc.Bucket, loc.FullPath, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", loc.Bucket, loc.FullPath, err)
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", loc.Bucket, loc.FullPath, err)
	}
	return data, nil
}

func (r *GCSReader) Check(ctx context.Context) error {
	bkt := r.Client.Bucket(r.Bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}

	// List at most one object to validate access to the prefix; empty is fine.
	it := bkt.Objects(ctx, &storage.Query{Prefix: strings.Trim(r.Prefix, "/")})
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("list prefix: %w", err)
	}
	return nil
}

var (
	_ Reader = (*FSReader)(nil)
	_ Reader = (*GCSReader)(nil)
)
