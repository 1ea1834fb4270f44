package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTimeReadsBoundaryEveryCall(t *testing.T) {
	var lastKind RetryKind
	stub := &stubBoundary{
		getRetryTime: func(in *GetRetryTimeInput) (*GetRetryTimeOutput, error) {
			lastKind = in.Kind
			return &GetRetryTimeOutput{Millis: 5000}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{})
	ctx := context.Background()

	d, err := svc.MaxDownloadRetryTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
	assert.Equal(t, RetryDownload, lastKind)

	_, err = svc.MaxUploadRetryTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, RetryUpload, lastKind)

	_, err = svc.MaxOperationRetryTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, RetryOperation, lastKind)

	assert.Equal(t, 3, stub.callCount("getRetryTime"), "the handle keeps no local retry state")
}

func TestSetRetryTimeWritesBoundary(t *testing.T) {
	var seen *SetRetryTimeInput
	stub := &stubBoundary{
		setRetryTime: func(in *SetRetryTimeInput) (*SetRetryTimeOutput, error) {
			seen = in
			return &SetRetryTimeOutput{}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{App: "app", Bucket: "bkt"})

	require.NoError(t, svc.SetMaxUploadRetryTime(context.Background(), 90*time.Second))
	require.NotNil(t, seen)
	assert.Equal(t, RetryUpload, seen.Kind)
	assert.Equal(t, int64(90000), seen.Millis)
	assert.Equal(t, Scope{App: "app", Bucket: "bkt"}, seen.Scope)
}

func TestSetRetryTimeRejectsNegative(t *testing.T) {
	stub := &stubBoundary{}
	svc := NewService(stub, ServiceOptions{})

	err := svc.SetMaxDownloadRetryTime(context.Background(), -time.Second)
	require.Error(t, err)
	assert.Equal(t, 0, stub.callCount("setRetryTime"), "a rejected value must not reach the boundary")
}

func TestRetryTimeWrapsBoundaryError(t *testing.T) {
	boom := errors.New("backend down")
	stub := &stubBoundary{
		getRetryTime: func(in *GetRetryTimeInput) (*GetRetryTimeOutput, error) {
			return nil, boom
		},
	}
	svc := NewService(stub, ServiceOptions{})

	_, err := svc.MaxDownloadRetryTime(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "download retry time")
}

func TestScopePropagation(t *testing.T) {
	var seen Scope
	stub := &stubBoundary{
		getData: func(ctx context.Context, in *GetDataInput) (*GetDataOutput, error) {
			seen = in.Scope
			return &GetDataOutput{Data: []byte("x")}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{App: "scope-app", Bucket: "scope-bucket"})

	_, err := svc.RefAt("a").Data(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Scope{App: "scope-app", Bucket: "scope-bucket"}, seen)
}

func TestDefaultServiceUsesAmbientScope(t *testing.T) {
	svc := DefaultService(&stubBoundary{})
	assert.Equal(t, "", svc.App())
	assert.Equal(t, "", svc.Bucket())
}

func TestBucketUsagePassThrough(t *testing.T) {
	stub := &stubBoundary{
		bucketUsage: func(in *BucketUsageInput) (*BucketUsageOutput, error) {
			return &BucketUsageOutput{TotalBytes: 7, ObjectCount: 2}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{})

	usage, err := svc.BucketUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), usage.TotalBytes)
	assert.Equal(t, int64(2), usage.ObjectCount)
}

func TestBucketUsageWrapsError(t *testing.T) {
	boom := errors.New("listing failed")
	stub := &stubBoundary{
		bucketUsage: func(in *BucketUsageInput) (*BucketUsageOutput, error) {
			return nil, boom
		},
	}
	svc := NewService(stub, ServiceOptions{})

	_, err := svc.BucketUsage(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reading bucket usage")
}
