package objectstore

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	headObjectFunc func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	headBucketFunc func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

func (m *mockS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headObjectFunc != nil {
		return m.headObjectFunc(ctx, params, optFns...)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headBucketFunc != nil {
		return m.headBucketFunc(ctx, params, optFns...)
	}
	return &s3.HeadBucketOutput{}, nil
}

type mockPresign struct {
	putInput *s3.PutObjectInput
	getInput *s3.GetObjectInput
	expires  time.Duration
	err      error
}

func (m *mockPresign) PresignPutObject(_ context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	m.putInput = params
	m.expires = presignExpiry(optFns)
	if m.err != nil {
		return nil, m.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + aws.ToString(params.Key) + "?X-Amz-Signature=put", Method: http.MethodPut}, nil
}

func (m *mockPresign) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	m.getInput = params
	m.expires = presignExpiry(optFns)
	if m.err != nil {
		return nil, m.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + aws.ToString(params.Key) + "?X-Amz-Signature=get", Method: http.MethodGet}, nil
}

func presignExpiry(optFns []func(*s3.PresignOptions)) time.Duration {
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	return o.Expires
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestS3(t *testing.T, api *mockS3, presign *mockPresign, opts ...Option) *S3 {
	t.Helper()
	opts = append([]Option{WithAPI(api, presign), WithClock(func() time.Time { return now })}, opts...)
	s, err := NewS3(aws.Config{}, "attachments", opts...)
	require.NoError(t, err)
	return s
}

func TestNewS3(t *testing.T) {
	_, err := NewS3(aws.Config{}, "")
	require.Error(t, err)
	_, err = NewS3(aws.Config{}, "b", WithTTL(0))
	require.Error(t, err)

	s, err := NewS3(aws.Config{Region: "eu-west-1"}, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", s.Bucket())
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	presign := &mockPresign{}
	s := newTestS3(t, &mockS3{}, presign)

	put, err := s.PresignPut(ctx, "notes/c1/attachments/n1/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, put.Method)
	assert.Contains(t, put.URL, "report.pdf")
	assert.Equal(t, now.Add(300*time.Second), put.ExpiresAt)
	assert.Equal(t, "attachments", aws.ToString(presign.putInput.Bucket))
	assert.Equal(t, DefaultTTL, presign.expires)

	get, err := s.PresignGet(ctx, "notes/c1/attachments/n1/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, get.Method)
	assert.Equal(t, "notes/c1/attachments/n1/report.pdf", aws.ToString(presign.getInput.Key))

	short := newTestS3(t, &mockS3{}, presign, WithTTL(time.Minute))
	get, err = short.PresignGet(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), get.ExpiresAt)
	assert.Equal(t, time.Minute, presign.expires)

	failing := newTestS3(t, &mockS3{}, &mockPresign{err: errors.New("no credentials")})
	_, err = failing.PresignPut(ctx, "k")
	require.ErrorContains(t, err, "no credentials")
}

func TestExists(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "present", want: true},
		{name: "typed not found", err: &types.NotFound{}, want: false},
		{name: "generic not found", err: &smithy.GenericAPIError{Code: "NotFound"}, want: false},
		{name: "forbidden", err: &smithy.GenericAPIError{Code: "Forbidden"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestS3(t, &mockS3{
				headObjectFunc: func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &s3.HeadObjectOutput{}, nil
				},
			}, &mockPresign{})
			ok, err := s.Exists(context.Background(), "k")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestReachable(t *testing.T) {
	s := newTestS3(t, &mockS3{
		headBucketFunc: func(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			return nil, errors.New("access denied")
		},
	}, &mockPresign{})
	require.ErrorContains(t, s.Reachable(context.Background()), "access denied")
}
