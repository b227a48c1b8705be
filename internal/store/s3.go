package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Store persists records as objects in a single S3 bucket. The object
// ETag doubles as the version token; PutIf maps to S3 conditional writes
// (If-Match / If-None-Match).
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store returns an S3Store over client and bucket.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// NewS3StoreFromEnv builds the client from the default AWS config chain.
// Region may be empty to defer to the environment.
func NewS3StoreFromEnv(ctx context.Context, bucket, region string) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket), nil
}

func (s *S3Store) Get(ctx context.Context, key string) (Record, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NoSuchKey
		if errors.As(err, &notFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	defer out.Body.Close()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return Record{}, fmt.Errorf("%w: read %q: %v", ErrUnavailable, key, err)
	}
	return Record{Key: key, Value: value, Version: aws.ToString(out.ETag)}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *S3Store) PutIf(ctx context.Context, key string, value []byte, version string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(value),
	}
	if version == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(version)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		if isPreconditionFailure(err) {
			return ErrConflict
		}
		return fmt.Errorf("%w: put %q: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Record, error) {
	var out []Record
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %q: %v", ErrUnavailable, prefix, err)
		}
		for _, obj := range page.Contents {
			rec, err := s.Get(ctx, aws.ToString(obj.Key))
			if err != nil {
				// An object can vanish between list and get; skip it.
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
	}
	return false
}
