package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appConfig "github.com/kendall-kelly/delivery-marketplace-api/config"
)

const (
	proofKeyPrefix   = "proofs/"
	proofURLLifetime = time.Hour
	uploadURLExpiry  = 15 * time.Minute
)

// ProofImageStore hands out presigned URLs for delivery proof photos.
// Clients upload straight to the bucket, the API never sees the bytes.
type ProofImageStore interface {
	// PresignUpload returns a fresh object key under the order's prefix and a PUT URL for it
	PresignUpload(ctx context.Context, orderID string) (key string, url string, err error)
	// PresignDownload returns a time-limited GET URL for key
	PresignDownload(ctx context.Context, key string) (string, error)
}

// ProofKeyPrefix is the key prefix every proof image of an order lives under
func ProofKeyPrefix(orderID string) string {
	return proofKeyPrefix + orderID + "/"
}

// IsProofKeyFor reports whether key was issued for orderID
func IsProofKeyFor(key, orderID string) bool {
	return strings.HasPrefix(key, ProofKeyPrefix(orderID)) && len(key) > len(ProofKeyPrefix(orderID))
}

func newProofKey(orderID string) string {
	return fmt.Sprintf("%s%d_%s.png", ProofKeyPrefix(orderID), time.Now().Unix(), uuid.NewString()[:8])
}

// S3Service handles all S3-related operations
type S3Service struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Service initializes the S3 service with AWS credentials
func NewS3Service(ctx context.Context, cfg *appConfig.Config) (*S3Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = false
	})

	return &S3Service{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.AWSS3Bucket,
	}, nil
}

func (s *S3Service) PresignUpload(ctx context.Context, orderID string) (string, string, error) {
	key := newProofKey(orderID)

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("image/png"),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	return key, request.URL, nil
}

func (s *S3Service) PresignDownload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = proofURLLifetime
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}
