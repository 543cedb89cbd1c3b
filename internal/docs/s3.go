// internal/docs/s3.go
// Package docs publishes the generated OpenAPI document to S3-compatible
// storage so it can be served outside the API process.
package docs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/awadmin/awadmin-api-go/internal/openapi"
)

// Object keys of the published documents.
const (
	JSONKey = "openapi/openapi.json"
	YAMLKey = "openapi/openapi.yaml"
)

// ObjectAPI is the part of the S3 client the publisher uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Publisher uploads the API documentation to a bucket.
type Publisher struct {
	api     ObjectAPI
	presign *s3.PresignClient // nil when the publisher wraps a bare ObjectAPI
	bucket  string
}

// NewS3Publisher creates a publisher for AWS S3 or an S3-compatible service
// such as MinIO.
func NewS3Publisher(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string) (*Publisher, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})
	return &Publisher{api: client, presign: s3.NewPresignClient(client), bucket: bucket}, nil
}

// NewPublisher wraps an existing object API.
func NewPublisher(api ObjectAPI, bucket string) *Publisher {
	return &Publisher{api: api, bucket: bucket}
}

// Result reports what Publish uploaded.
type Result struct {
	Key  string
	Size int64
}

// Publish uploads doc as JSON and YAML and checks that both objects landed.
func (p *Publisher) Publish(ctx context.Context, doc *openapi.Document) ([]Result, error) {
	jsonBody, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to render OpenAPI JSON: %w", err)
	}
	yamlBody, err := doc.YAML()
	if err != nil {
		return nil, fmt.Errorf("failed to render OpenAPI YAML: %w", err)
	}

	uploads := []struct {
		key         string
		contentType string
		body        []byte
	}{
		{JSONKey, "application/json", jsonBody},
		{YAMLKey, "application/yaml", yamlBody},
	}

	results := make([]Result, 0, len(uploads))
	for _, u := range uploads {
		_, err := p.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(u.key),
			Body:        bytes.NewReader(u.body),
			ContentType: aws.String(u.contentType),
		})
		if err != nil {
			return results, fmt.Errorf("failed to upload %s: %w", u.key, err)
		}
		size, err := p.verify(ctx, u.key, int64(len(u.body)))
		if err != nil {
			return results, err
		}
		results = append(results, Result{Key: u.key, Size: size})
		slog.LogAttrs(ctx, slog.LevelInfo, "OpenAPI document published",
			slog.String("bucket", p.bucket),
			slog.String("key", u.key),
			slog.Int64("size", size),
		)
	}
	return results, nil
}

// verify checks that key exists with the expected size.
func (p *Publisher) verify(ctx context.Context, key string, want int64) (int64, error) {
	head, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get object metadata for %s: %w", key, err)
	}
	size := aws.ToInt64(head.ContentLength)
	if size != want {
		return size, fmt.Errorf("object %s has %d bytes, uploaded %d", key, size, want)
	}
	return size, nil
}

// DownloadURL returns a presigned GET URL for key.
func (p *Publisher) DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if p.presign == nil {
		return "", fmt.Errorf("presigning not available")
	}
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}
