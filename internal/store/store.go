// Package store uploads written progressive meshes to an S3 compatible bucket, where a
// streaming server picks them up.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	EnvAccessKey = "VDPM_S3_ACCESS_KEY"
	EnvSecretKey = "VDPM_S3_SECRET_KEY"
)

var ErrBadURL = errors.New("store: publish url must look like s3://bucket/prefix")

// Publisher copies a local file to remote storage under name.
type Publisher interface {
	Publish(ctx context.Context, localPath, name string) error
}

// ParseURL splits s3://bucket/prefix.
func ParseURL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadURL, raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// MinioPublisher writes objects with the MinIO client.
type MinioPublisher struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioPublisher(client *minio.Client, bucket, prefix string) *MinioPublisher {
	return &MinioPublisher{client: client, bucket: bucket, prefix: prefix}
}

// NewMinioPublisherFromURL connects to endpoint with the credentials found in the
// environment and publishes below the bucket and prefix of publishURL.
func NewMinioPublisherFromURL(endpoint, publishURL string, secure bool) (*MinioPublisher, error) {
	bucket, prefix, err := ParseURL(publishURL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(EnvAccessKey), os.Getenv(EnvSecretKey), ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", endpoint, err)
	}
	return NewMinioPublisher(client, bucket, prefix), nil
}

func (p *MinioPublisher) Key(name string) string {
	return path.Join(p.prefix, filepath.ToSlash(name))
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *MinioPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{})
}

func (p *MinioPublisher) Publish(ctx context.Context, localPath, name string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	_, err = p.client.PutObject(ctx, p.bucket, p.Key(name), file, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", p.bucket, p.Key(name), err)
	}
	return nil
}

// Fetch downloads name into localPath.
func (p *MinioPublisher) Fetch(ctx context.Context, name, localPath string) error {
	err := p.client.FGetObject(ctx, p.bucket, p.Key(name), localPath, minio.GetObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return fmt.Errorf("store: %s/%s: %w", p.bucket, p.Key(name), os.ErrNotExist)
		}
		return err
	}
	return nil
}
