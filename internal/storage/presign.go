package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// URLSigner produces time-limited URLs for object operations.
type URLSigner interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignDelete(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Options configures the S3 presigner.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional custom endpoint (MinIO, LocalStack)
	AccessKeyID     string
	SecretAccessKey string
}

// Presigner signs S3 requests without sending them.
type Presigner struct {
	client *s3.PresignClient
	bucket string
}

// NewPresigner loads AWS configuration and builds a presign client. Static
// keys are used when given, otherwise the default credential chain applies.
func NewPresigner(ctx context.Context, opts Options) (*Presigner, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, errors.New("storage: bucket and region are required")
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{client: s3.NewPresignClient(client), bucket: opts.Bucket}, nil
}

// PresignPut returns a URL that accepts a single PUT of key.
func (p *Presigner) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign put: %w", err)
	}
	return req.URL, nil
}

// PresignDelete returns a URL that deletes key.
func (p *Presigner) PresignDelete(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := p.client.PresignDeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign delete: %w", err)
	}
	return req.URL, nil
}
