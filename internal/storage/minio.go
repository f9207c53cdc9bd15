package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps assets in an S3-compatible bucket using "<id>/<area>/<name>" keys.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = (&url.URL{Scheme: scheme, Host: endpoint}).String()
	}
	return &MinioStore{client: client, bucket: bucket, publicURL: joinURL(publicURL, bucket)}, nil
}

// EnsureDir makes sure the bucket exists; object stores have no real directories.
func (s *MinioStore) EnsureDir(ctx context.Context, designID uuid.UUID, area Area) error {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !found {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Write(ctx context.Context, designID uuid.UUID, area Area, name string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := objectKey(designID, area, name)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.URL(key), nil
}

func (s *MinioStore) RemoveAll(ctx context.Context, designID uuid.UUID) error {
	objects, listErr := listedObjects(ctx, s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    designID.String() + "/",
		Recursive: true,
	}))
	var firstErr error
	// Drain the channel so the remover goroutine can finish.
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	if err := listErr(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// listedObjects forwards the entries of a listing that carry no error. The
// returned func waits for the listing to end and reports its first error.
func listedObjects(ctx context.Context, in <-chan minio.ObjectInfo) (<-chan minio.ObjectInfo, func() error) {
	out := make(chan minio.ObjectInfo)
	done := make(chan struct{})
	var firstErr error
	go func() {
		defer close(done)
		defer close(out)
		for obj := range in {
			if obj.Err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("list objects: %w", obj.Err)
				}
				continue
			}
			select {
			case out <- obj:
			case <-ctx.Done():
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				return
			}
		}
	}()
	return out, func() error {
		<-done
		return firstErr
	}
}

// URL is the public address of an object key.
func (s *MinioStore) URL(key string) string {
	return joinURL(s.publicURL, key)
}
