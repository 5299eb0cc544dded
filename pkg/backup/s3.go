package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Target.
type S3Config struct {
	Bucket string
	Region string

	// Prefix is prepended to every object key, e.g. "distfs/".
	Prefix string

	// Endpoint overrides the S3 endpoint (MinIO, Localstack).
	Endpoint string

	// Static credentials. The default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string

	ForcePathStyle bool
}

// S3Target uploads backups as S3 objects.
type S3Target struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Target wraps an existing client.
func NewS3Target(client *s3.Client, cfg S3Config) *S3Target {
	return &S3Target{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// NewS3TargetFromConfig builds the S3 client from cfg and the environment.
func NewS3TargetFromConfig(ctx context.Context, cfg S3Config) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3Target(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// Kind implements Target.
func (t *S3Target) Kind() string { return "s3" }

// Bucket returns the destination bucket.
func (t *S3Target) Bucket() string { return t.bucket }

// Put uploads the object in a single PutObject call. Non-seekable readers are
// buffered first: request signing over plain HTTP endpoints needs to rewind.
func (t *S3Target) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		body = bytes.NewReader(buf)
	}

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(objectKey(t.prefix, key)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
