package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// CSVContentType is the content type of uploaded exports.
const CSVContentType = "text/csv"

// Validation errors
var (
	ErrMissingBucket = errors.New("bucket name is required")
	ErrInvalidPrefix = errors.New("invalid key prefix")
)

// objectPutter is the subset of *s3.Client used by S3Sink.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds configuration for the S3 sink. Any S3-compatible endpoint,
// such as R2 or MinIO, works with path-style addressing.
type S3Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string // Default: "auto"
}

// S3Sink uploads finished exports to object storage.
type S3Sink struct {
	client     objectPutter
	bucketName string
	timeNow    func() time.Time // For testability
}

// NewS3Sink creates a sink with a static-credential S3 client.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	if cfg.BucketName == "" {
		return nil, ErrMissingBucket
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return newS3Sink(s3.New(opts), cfg.BucketName), nil
}

func newS3Sink(client objectPutter, bucket string) *S3Sink {
	return &S3Sink{
		client:     client,
		bucketName: bucket,
		timeNow:    time.Now,
	}
}

// ObjectKey creates a unique key for an export.
// Pattern: exports/{prefix}/{YYYY-MM-DD}/{uuid}.csv
func (s *S3Sink) ObjectKey(prefix string) (string, error) {
	sanitized := sanitizePathComponent(prefix)
	if sanitized == "" {
		return "", ErrInvalidPrefix
	}
	day := s.timeNow().UTC().Format("2006-01-02")
	return fmt.Sprintf("exports/%s/%s/%s.csv", sanitized, day, uuid.New().String()), nil
}

// Upload stores body under key. An empty key is generated from prefix
// "training". It returns the key used.
func (s *S3Sink) Upload(ctx context.Context, key string, body []byte) (string, error) {
	if key == "" {
		var err error
		if key, err = s.ObjectKey("training"); err != nil {
			return "", err
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(CSVContentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", s.bucketName, key, err)
	}
	return key, nil
}

// sanitizePathComponent keeps only alphanumerics, hyphens and underscores.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
