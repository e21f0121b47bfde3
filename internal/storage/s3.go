// Package storage keeps product images and purchase order attachments in an
// S3-compatible bucket. Clients upload and download directly through
// presigned URLs; the service only stores object keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/config"
)

// ErrDisabled is returned by New when no bucket is configured.
var ErrDisabled = errors.New("object storage is not configured")

// PresignedURL is a time-limited URL for one HTTP method on one object.
type PresignedURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

func New(ctx context.Context, cfg config.StorageConfig) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, ErrDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.New: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     ttl,
	}, nil
}

func (s *S3) Bucket() string { return s.bucket }

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage.S3.EnsureBucket: head: %w", err)
	}

	log.Info().Str("bucket", s.bucket).Msg("creating storage bucket")
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("storage.S3.EnsureBucket: create: %w", err)
	}
	return nil
}

// PresignPut returns a URL the client PUTs the object body to. The upload must
// send the same Content-Type header.
func (s *S3) PresignPut(ctx context.Context, key, contentType string) (*PresignedURL, error) {
	if key == "" {
		return nil, errors.New("storage.S3.PresignPut: empty key")
	}
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("storage.S3.PresignPut: %w", err)
	}
	return &PresignedURL{Key: key, URL: req.URL, Method: req.Method, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *S3) PresignGet(ctx context.Context, key string) (*PresignedURL, error) {
	if key == "" {
		return nil, errors.New("storage.S3.PresignGet: empty key")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("storage.S3.PresignGet: %w", err)
	}
	return &PresignedURL{Key: key, URL: req.URL, Method: req.Method, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("storage.S3.Delete: empty key")
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("storage.S3.Delete: %w", err)
	}
	return nil
}
