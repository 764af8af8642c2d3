package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ssargent/bookshelf/pkg/book"
)

// ErrObjectNotFound is returned by a BlobStore when the object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// BlobStore reads and writes whole objects.
type BlobStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
}

// MinioBlobStore implements BlobStore for MinIO and S3-compatible storage.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore creates a blob store over an existing client.
func NewMinioBlobStore(client *minio.Client, bucket string) *MinioBlobStore {
	return &MinioBlobStore{client: client, bucket: bucket}
}

// NewMinioClient connects to endpoint with static credentials.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// EnsureBucket creates the bucket when it is missing.
func (s *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Get downloads an object.
func (s *MinioBlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// Put uploads an object in a single request.
func (s *MinioBlobStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// ObjectSnapshot persists the collection as one snapshot object.
type ObjectSnapshot struct {
	blobs       BlobStore
	object      string
	compression Compression
}

// NewObjectSnapshot creates the backend.
func NewObjectSnapshot(blobs BlobStore, object string, c Compression) *ObjectSnapshot {
	return &ObjectSnapshot{blobs: blobs, object: object, compression: c}
}

// LoadAll downloads the snapshot. A missing object is an empty collection.
func (o *ObjectSnapshot) LoadAll(ctx context.Context) ([]book.Book, error) {
	data, err := o.blobs.Get(ctx, o.object)
	if errors.Is(err, ErrObjectNotFound) {
		return []book.Book{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", o.object, err)
	}
	return DecodeSnapshot(data)
}

// SaveAll uploads a new snapshot. Object stores replace objects atomically.
func (o *ObjectSnapshot) SaveAll(ctx context.Context, books []book.Book) error {
	data, err := EncodeSnapshot(books, o.compression)
	if err != nil {
		return err
	}
	if err := o.blobs.Put(ctx, o.object, data); err != nil {
		return fmt.Errorf("put %s: %w", o.object, err)
	}
	return nil
}

// Close is a no-op; the client holds no per-backend resources.
func (o *ObjectSnapshot) Close() error {
	return nil
}
