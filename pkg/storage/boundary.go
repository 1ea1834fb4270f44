// Package storage provides a provider-agnostic client for cloud object
// storage. Callers obtain a Service bound to an application and bucket,
// derive immutable References to object paths, and move bytes and metadata
// through a pluggable Boundary implementation.
package storage

import (
	"context"
	"time"
)

// Scope identifies the application and bucket a request targets. Boundary
// implementations treat an empty Bucket as "use the ambient default".
type Scope struct {
	App    string
	Bucket string
}

// RetryKind selects which of the configurable retry windows an operation
// class uses.
type RetryKind string

const (
	RetryDownload  RetryKind = "download"
	RetryUpload    RetryKind = "upload"
	RetryOperation RetryKind = "operation"
)

// Retry windows a boundary reports before any caller has stored one.
const (
	DefaultDownloadRetryTime  = 10 * time.Minute
	DefaultUploadRetryTime    = 10 * time.Minute
	DefaultOperationRetryTime = 2 * time.Minute
)

// GetRetryTimeInput requests the current retry window for one operation class.
type GetRetryTimeInput struct {
	Scope
	Kind RetryKind
}

// GetRetryTimeOutput carries a retry window in milliseconds.
type GetRetryTimeOutput struct {
	Millis int64
}

// SetRetryTimeInput replaces the retry window for one operation class.
type SetRetryTimeInput struct {
	Scope
	Kind   RetryKind
	Millis int64
}

// SetRetryTimeOutput is empty; the write either succeeded or errored.
type SetRetryTimeOutput struct{}

// ResolveBucketInput asks the boundary which bucket a scope resolves to.
type ResolveBucketInput struct {
	Scope
	Path string
}

type ResolveBucketOutput struct {
	Bucket string
}

// ResolvePathInput asks the boundary for the canonical form of a path.
type ResolvePathInput struct {
	Scope
	Path string
}

type ResolvePathOutput struct {
	Path string
}

// ResolveNameInput asks the boundary for the short display name of a path.
type ResolveNameInput struct {
	Scope
	Path string
}

type ResolveNameOutput struct {
	Name string
}

// GetDataInput fetches whole-object content capped at MaxSize bytes. A
// larger object fails with ErrSizeLimitExceeded instead of truncating.
type GetDataInput struct {
	Scope
	Path    string
	MaxSize int64
}

type GetDataOutput struct {
	Data []byte
}

// WriteToFileInput streams an object into a file on the local filesystem.
type WriteToFileInput struct {
	Scope
	Path     string
	FilePath string
}

type WriteToFileOutput struct {
	BytesWritten int64
}

// PutFileInput uploads the contents of a local file. Metadata carries the
// caller's writable fields in wire form; nil means no metadata was supplied.
type PutFileInput struct {
	Scope
	Path     string
	FilePath string
	Metadata map[string]any
}

// PutDataInput uploads an in-memory byte slice.
type PutDataInput struct {
	Scope
	Path     string
	Data     []byte
	Metadata map[string]any
}

// PutObjectOutput reports a completed upload. DownloadURL addresses the
// object in whatever URL scheme the boundary serves.
type PutObjectOutput struct {
	DownloadURL string
}

// GetDownloadURLInput requests a URL from which the object can be fetched.
type GetDownloadURLInput struct {
	Scope
	Path string
}

type GetDownloadURLOutput struct {
	URL string
}

// DeleteInput removes the object at Path. Deleting a missing object fails
// with ErrObjectNotFound.
type DeleteInput struct {
	Scope
	Path string
}

type DeleteOutput struct{}

// GetMetadataInput fetches the stored metadata of an object.
type GetMetadataInput struct {
	Scope
	Path string
}

// GetMetadataOutput carries metadata as a generic key-value map; see
// ParseMetadata for the recognized keys.
type GetMetadataOutput struct {
	Metadata map[string]any
}

// UpdateMetadataInput rewrites the writable metadata fields of an object.
// Metadata holds exactly the writable wire keys; a nil value clears the
// change for that field on providers that distinguish null from empty.
type UpdateMetadataInput struct {
	Scope
	Path     string
	Metadata map[string]any
}

type UpdateMetadataOutput struct {
	Metadata map[string]any
}

// ListObjectsInput lists objects under a prefix, "/"-delimited, one page at
// a time. MaxResults <= 0 lets the boundary pick its page size.
type ListObjectsInput struct {
	Scope
	Prefix     string
	Delimiter  string
	MaxResults int
	PageToken  string
}

// ListObjectsOutput returns object paths and common prefixes below the
// requested prefix. NextPageToken is empty on the final page.
type ListObjectsOutput struct {
	Paths         []string
	Prefixes      []string
	NextPageToken string
}

// BucketUsageInput requests aggregate usage numbers for the scoped bucket.
type BucketUsageInput struct {
	Scope
}

type BucketUsageOutput struct {
	TotalBytes  int64
	ObjectCount int64
}

// Boundary is the transport seam between the client model and a storage
// backend. Every remote effect of the client travels through exactly one of
// these calls; implementations own connection handling, wire encoding and
// retry execution. Methods are safe for concurrent use.
type Boundary interface {
	GetRetryTime(ctx context.Context, in *GetRetryTimeInput) (*GetRetryTimeOutput, error)
	SetRetryTime(ctx context.Context, in *SetRetryTimeInput) (*SetRetryTimeOutput, error)

	ResolveBucket(ctx context.Context, in *ResolveBucketInput) (*ResolveBucketOutput, error)
	ResolvePath(ctx context.Context, in *ResolvePathInput) (*ResolvePathOutput, error)
	ResolveName(ctx context.Context, in *ResolveNameInput) (*ResolveNameOutput, error)

	GetData(ctx context.Context, in *GetDataInput) (*GetDataOutput, error)
	WriteToFile(ctx context.Context, in *WriteToFileInput) (*WriteToFileOutput, error)
	PutFile(ctx context.Context, in *PutFileInput) (*PutObjectOutput, error)
	PutData(ctx context.Context, in *PutDataInput) (*PutObjectOutput, error)
	GetDownloadURL(ctx context.Context, in *GetDownloadURLInput) (*GetDownloadURLOutput, error)
	Delete(ctx context.Context, in *DeleteInput) (*DeleteOutput, error)

	GetMetadata(ctx context.Context, in *GetMetadataInput) (*GetMetadataOutput, error)
	UpdateMetadata(ctx context.Context, in *UpdateMetadataInput) (*UpdateMetadataOutput, error)

	ListObjects(ctx context.Context, in *ListObjectsInput) (*ListObjectsOutput, error)
	BucketUsage(ctx context.Context, in *BucketUsageInput) (*BucketUsageOutput, error)

	// Close releases any connections or local resources the boundary holds.
	Close() error
}
