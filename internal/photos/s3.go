// Package photos stores account photos in an S3-compatible object store.
// Review photos live under review/, promoted primary photos under primary/.
package photos

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
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kozaktomas/face-review/internal/config"
)

// S3Store keeps photos in a single bucket on an S3-compatible endpoint
// (MinIO in every deployed environment).
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3 client with static credentials pointed at the
// configured endpoint.
func NewS3Store(ctx context.Context, cfg *config.S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, // MINIO_ROOT_USER
			cfg.SecretKey, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func reviewKey(userID string) string  { return "review/" + userID + ".jpg" }
func primaryKey(userID string) string { return "primary/" + userID + ".jpg" }

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// GetReviewPhoto returns the photo awaiting review, or nil when absent.
func (s *S3Store) GetReviewPhoto(ctx context.Context, userID string) ([]byte, error) {
	return s.get(ctx, reviewKey(userID))
}

func (s *S3Store) PutReviewPhoto(ctx context.Context, userID string, data []byte) error {
	return s.put(ctx, reviewKey(userID), data)
}

func (s *S3Store) DeleteReviewPhoto(ctx context.Context, userID string) error {
	return s.delete(ctx, reviewKey(userID))
}

// GetPrimaryPhoto returns the account's permanent photo, or nil when absent.
func (s *S3Store) GetPrimaryPhoto(ctx context.Context, userID string) ([]byte, error) {
	return s.get(ctx, primaryKey(userID))
}

func (s *S3Store) PutPrimaryPhoto(ctx context.Context, userID string, data []byte) error {
	return s.put(ctx, primaryKey(userID), data)
}

func (s *S3Store) DeletePrimaryPhoto(ctx context.Context, userID string) error {
	return s.delete(ctx, primaryKey(userID))
}
