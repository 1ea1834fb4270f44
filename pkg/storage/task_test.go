package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadTaskResolvesSuccess(t *testing.T) {
	stub := &stubBoundary{
		putData: func(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error) {
			return &PutObjectOutput{DownloadURL: "https://example.invalid/u"}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{})

	task := svc.RefAt("docs/a.txt").PutData(context.Background(), []byte{1, 2, 3}, nil)
	snapshot, err := task.Await(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "https://example.invalid/u", snapshot.DownloadURL)

	<-task.Done()
	assert.NoError(t, task.Err())
	assert.Same(t, snapshot, task.Snapshot())
	assert.Equal(t, 1, stub.callCount("putData"))
}

func TestUploadTaskResolvesFailure(t *testing.T) {
	boom := errors.New("wire broke")
	stub := &stubBoundary{
		putData: func(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error) {
			return nil, boom
		},
	}
	svc := NewService(stub, ServiceOptions{})

	task := svc.RefAt("docs/a.txt").PutData(context.Background(), []byte("x"), nil)
	snapshot, err := task.Await(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, snapshot)
	assert.Nil(t, task.Snapshot(), "a failed task has no snapshot")
	assert.ErrorIs(t, task.Err(), boom)
}

func TestAwaitAbandonsOnlyTheWait(t *testing.T) {
	block := make(chan struct{})
	stub := &stubBoundary{
		putData: func(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error) {
			<-block
			return &PutObjectOutput{DownloadURL: "late"}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{})
	task := svc.RefAt("slow.bin").PutData(context.Background(), []byte("x"), nil)

	// While the transfer is still running the task exposes no outcome.
	assert.Nil(t, task.Snapshot())
	assert.NoError(t, task.Err())

	waitCtx, cancelWait := context.WithCancel(context.Background())
	cancelWait()
	_, err := task.Await(waitCtx)
	assert.ErrorIs(t, err, context.Canceled, "an expired wait context abandons the wait")

	select {
	case <-task.Done():
		t.Fatal("abandoning the wait must not resolve the task")
	default:
	}

	close(block)
	snapshot, err := task.Await(context.Background())
	require.NoError(t, err, "the transfer keeps running under its dispatch context")
	assert.Equal(t, "late", snapshot.DownloadURL)
}

func TestDispatchCancellationFailsTask(t *testing.T) {
	stub := &stubBoundary{
		putData: func(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := NewService(stub, ServiceOptions{})

	dispatchCtx, cancel := context.WithCancel(context.Background())
	task := svc.RefAt("doomed.bin").PutData(dispatchCtx, []byte("x"), nil)
	cancel()

	_, err := task.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled, "cancelling the dispatch context fails the task")
}

func TestDownloadTaskResolves(t *testing.T) {
	stub := &stubBoundary{
		writeToFile: func(ctx context.Context, in *WriteToFileInput) (*WriteToFileOutput, error) {
			return &WriteToFileOutput{BytesWritten: 42}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{})

	task := svc.RefAt("docs/a.txt").WriteToFile(context.Background(), "/tmp/ignored")
	snapshot, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), snapshot.TotalBytes)
	assert.Same(t, snapshot, task.Snapshot())
}

func TestTaskIdentity(t *testing.T) {
	svc := NewService(&stubBoundary{}, ServiceOptions{})
	ref := svc.RefAt("docs/a.txt")

	first := ref.PutData(context.Background(), nil, nil)
	second := ref.PutData(context.Background(), nil, nil)

	assert.NotEmpty(t, first.ID())
	assert.NotEqual(t, first.ID(), second.ID(), "every dispatch gets its own identity")
	assert.Equal(t, "docs/a.txt", first.Ref().Path())

	deadline := time.After(5 * time.Second)
	for _, task := range []*UploadTask{first, second} {
		select {
		case <-task.Done():
		case <-deadline:
			t.Fatal("task did not resolve")
		}
	}
}

func TestPutFileTaskCarriesMetadata(t *testing.T) {
	var seen *PutFileInput
	stub := &stubBoundary{
		putFile: func(ctx context.Context, in *PutFileInput) (*PutObjectOutput, error) {
			seen = in
			return &PutObjectOutput{}, nil
		},
	}
	svc := NewService(stub, ServiceOptions{App: "app", Bucket: "bkt"})

	md := NewMetadata()
	md.ContentType = String("image/png")
	task := svc.RefAt("images/a.png").PutFile(context.Background(), "/tmp/a.png", md)
	_, err := task.Await(context.Background())
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, Scope{App: "app", Bucket: "bkt"}, seen.Scope)
	assert.Equal(t, "images/a.png", seen.Path)
	assert.Equal(t, "/tmp/a.png", seen.FilePath)
	assert.Equal(t, "image/png", seen.Metadata["contentType"])
}
