package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"veridoc/internal/domain"
	"veridoc/internal/platform/config"
)

// MinioStore is the production blob backend against any S3-compatible
// endpoint. PutObject gives the overwrite semantics the pipeline needs;
// StatObject supplies the not-found condition before presigning, because
// presigning alone never touches the object.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore connects to the configured endpoint.
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: connect %s: %w", cfg.Endpoint, err)
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) Upload(ctx context.Context, loc domain.StorageLocation, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, loc.Bucket, loc.Path,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("blobstore: put %s/%s: %w", loc.Bucket, loc.Path, err)
	}
	return nil
}

func (s *MinioStore) SignedURL(ctx context.Context, loc domain.StorageLocation, ttl time.Duration) (domain.ResolvedLink, error) {
	_, err := s.client.StatObject(ctx, loc.Bucket, loc.Path, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return domain.ResolvedLink{}, ErrObjectNotFound
		}
		return domain.ResolvedLink{}, fmt.Errorf("blobstore: stat %s/%s: %w", loc.Bucket, loc.Path, err)
	}
	signed, err := s.client.PresignedGetObject(ctx, loc.Bucket, loc.Path, ttl, nil)
	if err != nil {
		return domain.ResolvedLink{}, fmt.Errorf("blobstore: presign %s/%s: %w", loc.Bucket, loc.Path, err)
	}
	return domain.ResolvedLink{
		URL:       signed.String(),
		Location:  loc,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (s *MinioStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("blobstore: list %s/%s: %w", bucket, prefix, obj.Err)
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			SizeBytes:    obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}
