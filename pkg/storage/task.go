package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// UploadSnapshot is the completion value of a successful upload: the URL
// from which the uploaded object can now be fetched.
type UploadSnapshot struct {
	DownloadURL string
}

// DownloadSnapshot is the completion value of a successful download: how
// many bytes reached the destination file.
type DownloadSnapshot struct {
	TotalBytes int64
}

// task carries the lifecycle shared by upload and download tasks. A task is
// dispatched exactly once, when its factory constructs it, and reaches a
// terminal state exactly once; resolving is guarded by once so a late
// cancellation can never overwrite a success, nor the reverse.
type task struct {
	id   string
	ref  *Reference
	done chan struct{}
	once sync.Once
	err  error
}

func newTask(ref *Reference) task {
	return task{
		id:   uuid.NewString(),
		ref:  ref,
		done: make(chan struct{}),
	}
}

// ID returns the task's unique identifier, also used in log fields.
func (t *task) ID() string {
	return t.id
}

// Ref returns the reference the task is transferring to or from.
func (t *task) Ref() *Reference {
	return t.ref
}

// Done returns a channel closed when the task reaches its terminal state.
func (t *task) Done() <-chan struct{} {
	return t.done
}

// Err returns the terminal error, nil when the task succeeded or has not
// finished yet.
func (t *task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// UploadTask is a single-shot upload in flight. Factories return it already
// dispatched; wait on Done or Await for the outcome.
type UploadTask struct {
	task
	snapshot *UploadSnapshot
}

// Await blocks until the task finishes or ctx expires. An expired ctx only
// abandons the wait; the transfer itself keeps running under the context it
// was dispatched with.
func (t *UploadTask) Await(ctx context.Context) (*UploadSnapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.snapshot, t.err
	}
}

// Snapshot returns the completion value, or nil while the task is running
// or after a failure.
func (t *UploadTask) Snapshot() *UploadSnapshot {
	select {
	case <-t.done:
		return t.snapshot
	default:
		return nil
	}
}

func (t *UploadTask) resolve(snap *UploadSnapshot, err error) {
	t.once.Do(func() {
		t.snapshot = snap
		t.err = err
		close(t.done)
	})
}

func (t *UploadTask) run(ctx context.Context, dispatch func(context.Context) (*PutObjectOutput, error)) {
	logger := t.ref.svc.logger
	out, err := dispatch(ctx)
	if err != nil {
		logger.Debug("Upload task failed", "task", t.id, "path", t.ref.Path(), "error", err)
		t.resolve(nil, err)
		return
	}
	logger.Debug("Upload task resolved", "task", t.id, "path", t.ref.Path(), "url", out.DownloadURL)
	t.resolve(&UploadSnapshot{DownloadURL: out.DownloadURL}, nil)
}

// DownloadTask is a single-shot download to a local file, already dispatched
// when its factory returns.
type DownloadTask struct {
	task
	snapshot *DownloadSnapshot
}

// Await blocks until the task finishes or ctx expires. An expired ctx only
// abandons the wait; the transfer itself keeps running under the context it
// was dispatched with.
func (t *DownloadTask) Await(ctx context.Context) (*DownloadSnapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.snapshot, t.err
	}
}

// Snapshot returns the completion value, or nil while the task is running
// or after a failure.
func (t *DownloadTask) Snapshot() *DownloadSnapshot {
	select {
	case <-t.done:
		return t.snapshot
	default:
		return nil
	}
}

func (t *DownloadTask) resolve(snap *DownloadSnapshot, err error) {
	t.once.Do(func() {
		t.snapshot = snap
		t.err = err
		close(t.done)
	})
}

func (t *DownloadTask) run(ctx context.Context, dispatch func(context.Context) (*WriteToFileOutput, error)) {
	logger := t.ref.svc.logger
	out, err := dispatch(ctx)
	if err != nil {
		logger.Debug("Download task failed", "task", t.id, "path", t.ref.Path(), "error", err)
		t.resolve(nil, err)
		return
	}
	logger.Debug("Download task resolved", "task", t.id, "path", t.ref.Path(), "bytes", out.BytesWritten)
	t.resolve(&DownloadSnapshot{TotalBytes: out.BytesWritten}, nil)
}

// PutData uploads an in-memory payload to this reference. The returned task
// is already dispatched; cancelling ctx fails it with the context error.
// Metadata may be nil when the caller has nothing to set.
func (r *Reference) PutData(ctx context.Context, data []byte, md *Metadata) *UploadTask {
	t := &UploadTask{task: newTask(r)}
	r.svc.logger.Debug("Starting upload task", "task", t.id, "path", r.Path(), "bytes", len(data))
	go t.run(ctx, func(ctx context.Context) (*PutObjectOutput, error) {
		return r.svc.boundary.PutData(ctx, &PutDataInput{
			Scope:    r.svc.scope(),
			Path:     r.Path(),
			Data:     data,
			Metadata: md.settableMap(),
		})
	})
	return t
}

// PutFile uploads the contents of a local file to this reference. The
// returned task is already dispatched. Metadata may be nil.
func (r *Reference) PutFile(ctx context.Context, filePath string, md *Metadata) *UploadTask {
	t := &UploadTask{task: newTask(r)}
	r.svc.logger.Debug("Starting upload task", "task", t.id, "path", r.Path(), "file", filePath)
	go t.run(ctx, func(ctx context.Context) (*PutObjectOutput, error) {
		return r.svc.boundary.PutFile(ctx, &PutFileInput{
			Scope:    r.svc.scope(),
			Path:     r.Path(),
			FilePath: filePath,
			Metadata: md.settableMap(),
		})
	})
	return t
}

// WriteToFile downloads this reference's object into a local file. The
// returned task is already dispatched.
func (r *Reference) WriteToFile(ctx context.Context, filePath string) *DownloadTask {
	t := &DownloadTask{task: newTask(r)}
	r.svc.logger.Debug("Starting download task", "task", t.id, "path", r.Path(), "file", filePath)
	go t.run(ctx, func(ctx context.Context) (*WriteToFileOutput, error) {
		return r.svc.boundary.WriteToFile(ctx, &WriteToFileInput{
			Scope:    r.svc.scope(),
			Path:     r.Path(),
			FilePath: filePath,
		})
	})
	return t
}
