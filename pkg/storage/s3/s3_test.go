package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cumulus/internal/config"
	"cumulus/pkg/storage"
)

func TestIsConfigured(t *testing.T) {
	assert.False(t, isConfigured(&config.Config{}))
	assert.False(t, isConfigured(&config.Config{S3: &config.S3Config{}}))
	assert.True(t, isConfigured(&config.Config{S3: &config.S3Config{Region: "us-east-1"}}))
}

func TestInitializeRejectsHalfCredentialPair(t *testing.T) {
	for _, cfg := range []*config.Config{
		{S3: &config.S3Config{Region: "us-east-1", AccessKeyID: "AKIA123"}},
		{S3: &config.S3Config{Region: "us-east-1", SecretAccessKey: "shhh"}},
	} {
		_, err := initialize(context.Background(), cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	}
}

func TestInitializeRequiresConfiguration(t *testing.T) {
	_, err := initialize(context.Background(), &config.Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing or incomplete")
}

func TestNewRequiresRegion(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}

func TestAttrsFromHead(t *testing.T) {
	modified := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	attrs := attrsFromHead("b", "docs/report.pdf", &s3.HeadObjectOutput{
		ContentLength: aws.Int64(2048),
		ETag:          aws.String(`"abc123"`),
		ContentType:   aws.String("application/pdf"),
		CacheControl:  aws.String("max-age=3600"),
		LastModified:  &modified,
		Metadata:      map[string]string{"owner": "ops"},
	})

	assert.Equal(t, "b", attrs.Bucket)
	assert.Equal(t, "docs/report.pdf", attrs.Path)
	assert.Equal(t, "report.pdf", attrs.Name)
	assert.Equal(t, int64(2048), attrs.Size)
	assert.Equal(t, "abc123", attrs.MD5Hash, "the surrounding ETag quotes are stripped")
	assert.Equal(t, "application/pdf", attrs.ContentType)
	assert.Equal(t, "max-age=3600", attrs.CacheControl)
	assert.Equal(t, modified, attrs.Created)
	assert.Equal(t, modified, attrs.Updated)
	assert.Equal(t, map[string]string{"owner": "ops"}, attrs.CustomMetadata)
}

func TestAttrsFromHeadSparse(t *testing.T) {
	attrs := attrsFromHead("b", "x", &s3.HeadObjectOutput{})
	assert.Equal(t, int64(0), attrs.Size)
	assert.Equal(t, "", attrs.MD5Hash)
	assert.Nil(t, attrs.CustomMetadata)
	assert.True(t, attrs.Created.IsZero())
	assert.True(t, attrs.Updated.IsZero())
}

func TestMapNotFound(t *testing.T) {
	err := mapNotFound("docs/a", &types.NoSuchKey{})
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Contains(t, err.Error(), `"docs/a"`)

	err = mapNotFound("docs/a", fmt.Errorf("head: %w", &types.NotFound{}))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	plain := errors.New("throttled")
	assert.Equal(t, plain, mapNotFound("docs/a", plain))
}

func TestRetryWindowBookkeeping(t *testing.T) {
	b := &Boundary{
		opts:    Options{App: "app", Bucket: "ambient"},
		retries: make(map[scopeKey]map[storage.RetryKind]int64),
	}
	ctx := context.Background()

	out, err := b.GetRetryTime(ctx, &storage.GetRetryTimeInput{Kind: storage.RetryUpload})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultUploadRetryTime.Milliseconds(), out.Millis)

	_, err = b.SetRetryTime(ctx, &storage.SetRetryTimeInput{Kind: storage.RetryUpload, Millis: 90000})
	require.NoError(t, err)

	out, err = b.GetRetryTime(ctx, &storage.GetRetryTimeInput{Kind: storage.RetryUpload})
	require.NoError(t, err)
	assert.Equal(t, int64(90000), out.Millis)

	// Other kinds and other scopes still see their defaults.
	out, err = b.GetRetryTime(ctx, &storage.GetRetryTimeInput{Kind: storage.RetryOperation})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultOperationRetryTime.Milliseconds(), out.Millis)

	out, err = b.GetRetryTime(ctx, &storage.GetRetryTimeInput{
		Scope: storage.Scope{Bucket: "other"},
		Kind:  storage.RetryUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultUploadRetryTime.Milliseconds(), out.Millis)
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "c.txt", lastSegment("a/b/c.txt"))
	assert.Equal(t, "solo", lastSegment("solo"))
	assert.Equal(t, "", lastSegment("dir/"))
}
