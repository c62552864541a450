package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// S3Backend is the durable-temporary tier on an S3-compatible object
// store. Reads go through presigned URLs; a bucket lifecycle rule
// expires objects the sweeper never got to.
type S3Backend struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

// S3Options configures the durable-temporary tier.
type S3Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	URLTTL        time.Duration
	ObjectTTLDays int
}

// NewS3Backend connects to the object store and ensures the bucket and
// its expiry lifecycle exist.
func NewS3Backend(ctx context.Context, opts S3Options) (*S3Backend, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	if opts.ObjectTTLDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{{
			ID:         "expire-artifacts",
			Status:     "Enabled",
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(opts.ObjectTTLDays)},
		}}
		if err := client.SetBucketLifecycle(ctx, opts.Bucket, lc); err != nil {
			return nil, fmt.Errorf("set bucket lifecycle: %w", err)
		}
	}

	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Backend{client: client, bucket: opts.Bucket, urlTTL: ttl}, nil
}

func (b *S3Backend) Put(ctx context.Context, name string, src io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, name, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", name, err)
	}
	return nil
}

// URLFor stats the object before presigning so a recorded locator whose
// object expired surfaces as ErrNotFound instead of a signed 404.
func (b *S3Backend) URLFor(ctx context.Context, name string) (string, error) {
	if _, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat object %s: %w", name, err)
	}

	u, err := b.client.PresignedGetObject(ctx, b.bucket, name, b.urlTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", name, err)
	}
	return u.String(), nil
}

// Delete is idempotent: S3 object deletion succeeds whether or not the
// key exists.
func (b *S3Backend) Delete(ctx context.Context, name string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

func (b *S3Backend) Exists(ctx context.Context, name string) (bool, error) {
	if _, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", name, err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
