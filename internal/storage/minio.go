package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// presignExpiry is the longest lifetime S3 allows for a presigned URL.
const presignExpiry = 7 * 24 * time.Hour

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL, when set, is the base of stored links instead of a
	// presigned URL.
	PublicURL string
}

type MinioMirror struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioMirror(opts MinioOptions) (*MinioMirror, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioMirror{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: strings.TrimSuffix(opts.PublicURL, "/"),
	}, nil
}

func (m *MinioMirror) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinioMirror) Mirror(ctx context.Context, sourceURL, objectPath string) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}

	dl, err := fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	defer dl.body.Close()

	_, err = m.client.PutObject(ctx, m.bucket, objectPath, dl.body, dl.size, minio.PutObjectOptions{
		ContentType: dl.contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	if m.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, objectPath), nil
	}

	presigned, err := m.client.PresignedGetObject(ctx, m.bucket, objectPath, presignExpiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}
	return presigned.String(), nil
}

func (m *MinioMirror) DeletePrefix(ctx context.Context, prefix string) error {
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", obj.Key, err)
		}
	}
	return nil
}
