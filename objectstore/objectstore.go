// Package objectstore issues pre-signed URLs for attachment bytes. The API
// never transfers attachment bytes itself.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const DefaultTTL = 300 * time.Second

// URL is a pre-signed request valid until ExpiresAt.
type URL struct {
	URL       string
	Method    string
	ExpiresAt time.Time
}

// Presigner is the object store contract used by the note ledger.
type Presigner interface {
	PresignPut(ctx context.Context, key string) (URL, error)
	PresignGet(ctx context.Context, key string) (URL, error)
	// Exists reports whether an object was uploaded under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// S3API is the subset of *s3.Client used by S3.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// PresignAPI is the subset of *s3.PresignClient used by S3.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Option is a functional option for configuring S3.
type Option func(*options)

type options struct {
	ttl          time.Duration
	endpoint     string
	usePathStyle bool
	clock        func() time.Time
	api          S3API
	presign      PresignAPI
}

// WithTTL sets how long issued URLs stay valid. Defaults to DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithEndpoint points the client at an S3 compatible endpoint.
func WithEndpoint(url string, usePathStyle bool) Option {
	return func(o *options) {
		o.endpoint = url
		o.usePathStyle = usePathStyle
	}
}

// WithClock sets the clock used to compute expiry times.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithAPI injects the S3 and presign clients, e.g. mocks in tests.
func WithAPI(api S3API, presign PresignAPI) Option {
	return func(o *options) {
		o.api = api
		o.presign = presign
	}
}

// S3 issues pre-signed URLs for objects in a single bucket.
type S3 struct {
	bucket  string
	ttl     time.Duration
	clock   func() time.Time
	api     S3API
	presign PresignAPI
}

var _ Presigner = &S3{}

func NewS3(awsCfg aws.Config, bucket string, opts ...Option) (*S3, error) {
	o := &options{ttl: DefaultTTL, clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if o.ttl <= 0 {
		return nil, errors.New("presign ttl must be greater than zero")
	}
	if o.api == nil || o.presign == nil {
		client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if o.endpoint != "" {
				so.BaseEndpoint = aws.String(o.endpoint)
			}
			so.UsePathStyle = o.usePathStyle
		})
		o.api = client
		o.presign = s3.NewPresignClient(client)
	}
	return &S3{
		bucket:  bucket,
		ttl:     o.ttl,
		clock:   o.clock,
		api:     o.api,
		presign: o.presign,
	}, nil
}

func (s *S3) PresignPut(ctx context.Context, key string) (URL, error) {
	expiresAt := s.clock().Add(s.ttl)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return URL{}, fmt.Errorf("presign put %s: %w", key, err)
	}
	return URL{URL: req.URL, Method: req.Method, ExpiresAt: expiresAt}, nil
}

func (s *S3) PresignGet(ctx context.Context, key string) (URL, error) {
	expiresAt := s.clock().Add(s.ttl)
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return URL{}, fmt.Errorf("presign get %s: %w", key, err)
	}
	return URL{URL: req.URL, Method: req.Method, ExpiresAt: expiresAt}, nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	// HeadObject has no body, so some endpoints only report the status code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", key, err)
}

// Bucket returns the bucket objects are stored in.
func (s *S3) Bucket() string {
	return s.bucket
}

// Reachable checks that the bucket exists and the caller may read it.
func (s *S3) Reachable(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}
