package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

const partSizeMB = 10

// S3Storage writes objects to AWS S3 (or an S3 compatible endpoint) through
// the multipart-capable upload manager.
type S3Storage struct {
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	region      string
	endpoint    string
	externalURL string
}

func NewS3Storage(ctx context.Context, config *BackendConfig) (*S3Storage, error) {
	if config.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket must not be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.S3Region),
	}
	if config.S3AccessKey != "" && config.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.S3AccessKey, config.S3SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := ""
	if config.S3Endpoint != "" {
		endpoint = config.S3Endpoint
		if !strings.Contains(endpoint, "://") {
			scheme := "http"
			if config.S3UseSSL {
				scheme = "https"
			}
			endpoint = scheme + "://" + endpoint
		}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSizeMB * 1024 * 1024
		}),
		bucket:      config.S3Bucket,
		region:      config.S3Region,
		endpoint:    endpoint,
		externalURL: strings.TrimSuffix(config.ExternalURL, "/"),
	}, nil
}

func (s *S3Storage) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}
	if !opts.Expires.IsZero() {
		input.Expires = aws.Time(opts.Expires)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.Error().
				Str("bucket", s.bucket).
				Str("key", key).
				Str("code", apiErr.ErrorCode()).
				Str("fault", apiErr.ErrorFault().String()).
				Msg("S3 rejected object upload")
		}
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) URL(ctx context.Context, key string) (string, error) {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case s.externalURL != "":
		return fmt.Sprintf("%s/%s", s.externalURL, escaped), nil
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.endpoint, "/"), s.bucket, escaped), nil
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped), nil
	}
}
