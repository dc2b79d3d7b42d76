package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// AttachmentLoader resolves object-storage keys referenced by a
// notification's content into loaded attachments.
type AttachmentLoader interface {
	Load(ctx context.Context, key string) (Attachment, error)
}

// S3Client is the subset of the S3 API the loader uses.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config contains object storage configuration for attachments.
type S3Config struct {
	Bucket      string `env:"ATTACHMENTS_S3_BUCKET"`
	Region      string `env:"ATTACHMENTS_S3_REGION"`
	AccessKeyID string `env:"ATTACHMENTS_S3_ACCESS_KEY_ID"`
	SecretKey   string `env:"ATTACHMENTS_S3_SECRET_KEY"`
	Endpoint    string `env:"ATTACHMENTS_S3_ENDPOINT"` // for S3-compatible services like MinIO
}

// S3Loader loads attachments from S3 or an S3-compatible store.
type S3Loader struct {
	client S3Client
	bucket string
}

// S3LoaderOption configures an S3Loader.
type S3LoaderOption func(*s3LoaderOptions)

type s3LoaderOptions struct {
	s3Client S3Client
}

// WithS3Client sets a pre-configured S3 client, mainly for tests.
func WithS3Client(client S3Client) S3LoaderOption {
	return func(o *s3LoaderOptions) {
		o.s3Client = client
	}
}

// NewS3Loader creates an attachment loader backed by S3.
func NewS3Loader(ctx context.Context, cfg S3Config, opts ...S3LoaderOption) (*S3Loader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: S3 bucket is required", ErrInvalidConfig)
	}

	options := &s3LoaderOptions{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: S3 region is required", ErrInvalidConfig)
		}

		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretKey, "",
				)),
			)
		}

		awsConfig, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return &S3Loader{client: client, bucket: cfg.Bucket}, nil
}

// Load implements AttachmentLoader.
func (l *S3Loader) Load(ctx context.Context, key string) (Attachment, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return Attachment{}, fmt.Errorf("%w: %s", ErrAttachmentNotFound, key)
		}
		return Attachment{}, fmt.Errorf("failed to load attachment %q: %w", key, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to read attachment %q: %w", key, err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(key))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Attachment{
		Name:        filepath.Base(key),
		ContentType: contentType,
		Content:     content,
	}, nil
}
