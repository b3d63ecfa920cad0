// Package services holds the storage, upload, download and indexing
// services behind the HTTP handlers.
package services

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
)

// StoreClient is the object-store surface used by the services. It wraps
// the subset of minio.Client we depend on so tests can substitute mocks.
type StoreClient interface {
	// Buckets
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	RemoveBucket(ctx context.Context, bucket string) error
	GetBucketPolicy(ctx context.Context, bucket string) (string, error)
	SetBucketPolicy(ctx context.Context, bucket, policy string) error

	// Objects
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) ([]minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	RemoveObjects(ctx context.Context, bucket string, keys []string) ([]string, error)
	GetObjectTagging(ctx context.Context, bucket, key string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error)

	// Presigned URLs
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PresignedPutObject(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error)
}

// StoreAdminClient is the admin surface used for data-usage statistics.
type StoreAdminClient interface {
	DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error)
}

// StoreConfig describes the MinIO connection.
type StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// WrappedMinioClient implements StoreClient on a *minio.Client.
type WrappedMinioClient struct {
	client *minio.Client
}

// NewStoreClient connects to the object store with static credentials.
func NewStoreClient(cfg StoreConfig) (*WrappedMinioClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &WrappedMinioClient{client: client}, nil
}

// NewStoreAdminClient connects the madmin client with the same credentials.
func NewStoreAdminClient(cfg StoreConfig) (StoreAdminClient, error) {
	return madmin.NewWithOptions(cfg.Endpoint, &madmin.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

func (c *WrappedMinioClient) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	return c.client.ListBuckets(ctx)
}

func (c *WrappedMinioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return c.client.BucketExists(ctx, bucket)
}

func (c *WrappedMinioClient) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return c.client.MakeBucket(ctx, bucket, opts)
}

func (c *WrappedMinioClient) RemoveBucket(ctx context.Context, bucket string) error {
	return c.client.RemoveBucket(ctx, bucket)
}

func (c *WrappedMinioClient) GetBucketPolicy(ctx context.Context, bucket string) (string, error) {
	return c.client.GetBucketPolicy(ctx, bucket)
}

func (c *WrappedMinioClient) SetBucketPolicy(ctx context.Context, bucket, policy string) error {
	return c.client.SetBucketPolicy(ctx, bucket, policy)
}

func (c *WrappedMinioClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) ([]minio.ObjectInfo, error) {
	// Convert channel to slice
	var objects []minio.ObjectInfo
	for obj := range c.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (c *WrappedMinioClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.client.GetObject(ctx, bucket, key, opts)
}

func (c *WrappedMinioClient) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return c.client.PutObject(ctx, bucket, key, reader, size, opts)
}

func (c *WrappedMinioClient) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return c.client.StatObject(ctx, bucket, key, opts)
}

func (c *WrappedMinioClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	return c.client.RemoveObject(ctx, bucket, key, opts)
}

// RemoveObjects batch-deletes keys and returns the keys that failed.
// A non-nil error is reserved for faults outside per-key outcomes.
func (c *WrappedMinioClient) RemoveObjects(ctx context.Context, bucket string, keys []string) ([]string, error) {
	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, key := range keys {
			select {
			case objectsCh <- minio.ObjectInfo{Key: key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failed []string
	for res := range c.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			failed = append(failed, res.ObjectName)
		}
	}
	return failed, ctx.Err()
}

func (c *WrappedMinioClient) GetObjectTagging(ctx context.Context, bucket, key string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error) {
	return c.client.GetObjectTagging(ctx, bucket, key, opts)
}

func (c *WrappedMinioClient) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	return c.client.PresignedGetObject(ctx, bucket, key, expires, reqParams)
}

func (c *WrappedMinioClient) PresignedPutObject(ctx context.Context, bucket, key string, expires time.Duration) (*url.URL, error) {
	return c.client.PresignedPutObject(ctx, bucket, key, expires)
}
