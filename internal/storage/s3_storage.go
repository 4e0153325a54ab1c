package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"idleassets/api/internal/config"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// IBlobStorage stores publicly readable photos and avatars.
type IBlobStorage interface {
	// Upload writes data to path, replacing any existing object, and returns its public URL.
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	Download(ctx context.Context, path string) ([]byte, string, error)
	PublicURL(path string) string
}

type s3Storage struct {
	cfg      *config.Config
	s3Client *s3.Client
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IBlobStorage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Storage{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

func (s *s3Storage) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	key, err := CleanKey(path)
	if err != nil {
		return "", err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	log.Printf("Uploaded %d bytes to %s", len(data), key)
	return s.PublicURL(key), nil
}

func (s *s3Storage) Download(ctx context.Context, path string) ([]byte, string, error) {
	key, err := CleanKey(path)
	if err != nil {
		return nil, "", err
	}
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

// PublicURL returns the address clients use to fetch the object at path.
func (s *s3Storage) PublicURL(path string) string {
	return PublicURL(s.cfg, path)
}

// PublicURL joins the configured image base URL with path. Without a base URL
// the bucket's virtual-hosted address is used.
func PublicURL(cfg *config.Config, path string) string {
	base := strings.TrimRight(cfg.ImageBaseS3URL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// KeyFromURL reverses PublicURL. It reports false for URLs outside the bucket.
func KeyFromURL(cfg *config.Config, url string) (string, bool) {
	prefix := PublicURL(cfg, "")
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// CleanKey validates an object path and strips any leading slash.
func CleanKey(path string) (string, error) {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid object key %q", path)
		}
	}
	return key, nil
}
