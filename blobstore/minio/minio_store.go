package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/specfit/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// gridContentType tags uploaded template grids.
const gridContentType = "application/x-specfit-grid"

// Store implements blobstore.BlobStore on a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a Store. rootPrefix is joined in front of every blob
// name, e.g. "phoenix/" for one template library among several.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

// Dial connects to endpoint with static credentials and returns a Store.
func Dial(endpoint, accessKey, secretKey, bucket, rootPrefix string, secure bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: dial %s: %w", endpoint, err)
	}
	return NewStore(client, bucket, rootPrefix), nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) name(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

func translate(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("minio: %s: %w", key, blobstore.ErrNotFound)
	}
	return fmt.Errorf("minio: %s: %w", key, err)
}

// Open stats the object and returns a lazy handle. ReadAt issues ranged
// GETs; Bytes downloads the object once, which is how template grids are
// loaded.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, translate(err, key)
	}
	return &blob{store: s, key: key, size: info.Size, etag: info.ETag}, nil
}

// Put uploads a template grid.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: gridContentType})
	if err != nil {
		return translate(err, key)
	}
	return nil
}

// Delete removes a blob. A missing blob is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if err = translate(err, key); errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	return err
}

// List returns the sorted blob names under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, translate(obj.Err, s.key(prefix))
		}
		if n := s.name(obj.Key); n != "" {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

// blob is an object handle. The ETag pins every read to the object version
// seen by Open.
type blob struct {
	store *Store
	key   string
	size  int64
	etag  string

	once sync.Once
	data []byte
	err  error
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) Close() error { return nil }

func (b *blob) get(ctx context.Context, opts minio.GetObjectOptions) (*minio.Object, error) {
	if b.etag != "" {
		if err := opts.SetMatchETag(b.etag); err != nil {
			return nil, err
		}
	}
	return b.store.client.GetObject(ctx, b.store.bucket, b.key, opts)
}

// Bytes downloads the full object once.
func (b *blob) Bytes() ([]byte, error) {
	b.once.Do(func() {
		obj, err := b.get(context.Background(), minio.GetObjectOptions{})
		if err != nil {
			b.err = translate(err, b.key)
			return
		}
		defer obj.Close()
		buf := make([]byte, b.size)
		if _, err := io.ReadFull(obj, buf); err != nil {
			b.err = translate(err, b.key)
			return
		}
		b.data = buf
	})
	return b.data, b.err
}

func (b *blob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	last := min(off+int64(len(p)), b.size) - 1
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, last); err != nil {
		return 0, err
	}
	obj, err := b.get(ctx, opts)
	if err != nil {
		return 0, translate(err, b.key)
	}
	defer obj.Close()

	want := int(last - off + 1)
	n, err := io.ReadFull(obj, p[:want])
	if err != nil {
		return n, translate(err, b.key)
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}
