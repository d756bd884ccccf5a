package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/searchai/api/internal/config"
)

// ArchiveClient defines the object storage operations used for raw page archives
type ArchiveClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// S3Archive implements ArchiveClient for any S3-compatible store (AWS, R2, MinIO)
type S3Archive struct {
	s3Client   *s3.Client
	presigner  *s3.PresignClient
	bucketName string
}

// NewS3Archive creates a new archive client
func NewS3Archive(cfg *config.ArchiveConfig) (*S3Archive, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("archive configuration incomplete")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archive{
		s3Client:   s3Client,
		presigner:  s3.NewPresignClient(s3Client),
		bucketName: cfg.Bucket,
	}, nil
}

// Upload stores an object under key
func (c *S3Archive) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to archive: %w", err)
	}
	return nil
}

// Delete removes an object
func (c *S3Archive) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from archive: %w", err)
	}
	return nil
}

// GetSignedURL generates a presigned URL for temporary access
func (c *S3Archive) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presignedReq, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}
