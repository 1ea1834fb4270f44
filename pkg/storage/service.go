package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ServiceOptions configures a Service handle. Zero values select the
// boundary's ambient defaults.
type ServiceOptions struct {
	// App identifies the calling application on the storage side. Empty
	// means the boundary's default application.
	App string
	// Bucket overrides the bucket the handle addresses. Empty means the
	// boundary's default bucket.
	Bucket string
	// Logger receives task lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Service is a handle on one (application, bucket) pairing. It is cheap,
// immutable after construction and safe for concurrent use; several handles
// with different scopes can share a single Boundary. The handle keeps no
// local configuration state: retry-time reads and writes each travel to the
// boundary, so concurrent processes always observe the stored values.
type Service struct {
	app      string
	bucket   string
	boundary Boundary
	logger   *slog.Logger
}

// NewService returns a handle scoped to opts.App and opts.Bucket, speaking
// through the given boundary.
func NewService(boundary Boundary, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		app:      opts.App,
		bucket:   opts.Bucket,
		boundary: boundary,
		logger:   logger.With("service", "storage"),
	}
}

// DefaultService returns a handle for the boundary's default application
// and bucket.
func DefaultService(boundary Boundary) *Service {
	return NewService(boundary, ServiceOptions{})
}

// App returns the application identifier the handle was built with.
func (s *Service) App() string {
	return s.app
}

// Bucket returns the bucket override the handle was built with, or "" when
// the boundary's default bucket applies.
func (s *Service) Bucket() string {
	return s.bucket
}

// Ref returns the root reference of the scoped bucket.
func (s *Service) Ref() *Reference {
	return &Reference{svc: s}
}

// RefAt returns a reference at the given slash-separated path.
func (s *Service) RefAt(path string) *Reference {
	return s.Ref().Child(path)
}

func (s *Service) scope() Scope {
	return Scope{App: s.app, Bucket: s.bucket}
}

// MaxDownloadRetryTime reads the stored retry window for downloads.
func (s *Service) MaxDownloadRetryTime(ctx context.Context) (time.Duration, error) {
	return s.retryTime(ctx, RetryDownload)
}

// MaxUploadRetryTime reads the stored retry window for uploads.
func (s *Service) MaxUploadRetryTime(ctx context.Context) (time.Duration, error) {
	return s.retryTime(ctx, RetryUpload)
}

// MaxOperationRetryTime reads the stored retry window for metadata and
// other non-transfer operations.
func (s *Service) MaxOperationRetryTime(ctx context.Context) (time.Duration, error) {
	return s.retryTime(ctx, RetryOperation)
}

// SetMaxDownloadRetryTime stores the retry window for downloads.
func (s *Service) SetMaxDownloadRetryTime(ctx context.Context, d time.Duration) error {
	return s.setRetryTime(ctx, RetryDownload, d)
}

// SetMaxUploadRetryTime stores the retry window for uploads.
func (s *Service) SetMaxUploadRetryTime(ctx context.Context, d time.Duration) error {
	return s.setRetryTime(ctx, RetryUpload, d)
}

// SetMaxOperationRetryTime stores the retry window for metadata and other
// non-transfer operations.
func (s *Service) SetMaxOperationRetryTime(ctx context.Context, d time.Duration) error {
	return s.setRetryTime(ctx, RetryOperation, d)
}

func (s *Service) retryTime(ctx context.Context, kind RetryKind) (time.Duration, error) {
	out, err := s.boundary.GetRetryTime(ctx, &GetRetryTimeInput{Scope: s.scope(), Kind: kind})
	if err != nil {
		return 0, fmt.Errorf("reading %s retry time: %w", kind, err)
	}
	return time.Duration(out.Millis) * time.Millisecond, nil
}

func (s *Service) setRetryTime(ctx context.Context, kind RetryKind, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s retry time must not be negative, got %s", kind, d)
	}
	_, err := s.boundary.SetRetryTime(ctx, &SetRetryTimeInput{Scope: s.scope(), Kind: kind, Millis: d.Milliseconds()})
	if err != nil {
		return fmt.Errorf("storing %s retry time: %w", kind, err)
	}
	return nil
}

// BucketUsage reports aggregate size and object count for the scoped bucket.
func (s *Service) BucketUsage(ctx context.Context) (*BucketUsageOutput, error) {
	out, err := s.boundary.BucketUsage(ctx, &BucketUsageInput{Scope: s.scope()})
	if err != nil {
		return nil, fmt.Errorf("reading bucket usage: %w", err)
	}
	return out, nil
}
