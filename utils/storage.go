package utils

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"legacy/config"
)

// FileStore is the blob storage collaborator. Media upload writes through
// it and permanent delete removes the backing object, best effort.
type FileStore interface {
	Upload(ctx context.Context, key string, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3Store stores files in an S3-compatible bucket (AWS S3, MinIO, or the
// Supabase storage S3 endpoint).
type S3Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// MediaStorageKey builds the object key for an upload. Keys are scoped by
// vault so a vault's files share one prefix.
func MediaStorageKey(vaultID uint, fileName string) string {
	safe := unsafeKeyChars.ReplaceAllString(fileName, "_")
	return fmt.Sprintf("%d/%d-%s", vaultID, time.Now().UnixMilli(), safe)
}

// StorageKeyFromURL recovers the object key from a stored file URL.
func StorageKeyFromURL(vaultID uint, fileURL string) string {
	parts := strings.Split(fileURL, "/")
	return fmt.Sprintf("%d/%s", vaultID, parts[len(parts)-1])
}
