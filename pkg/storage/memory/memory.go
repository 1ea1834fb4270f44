// Package memory implements the storage boundary on top of process-local
// maps. It backs tests and ephemeral runs: objects vanish with the process,
// and every request is recorded so tests can assert the exact traffic the
// client produced.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"cumulus/internal/config"
	"cumulus/internal/provider"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

func init() {
	provider.Register(common.Memory, provider.Registration{
		// The memory store needs no configuration.
		ConfigCheck: func(*config.Config) bool { return true },
		Initializer: initialize,
	})
}

var (
	sharedOnce sync.Once
	shared     *Boundary
)

// Initializes the process-wide shared store so successive operations in one
// process observe the same objects.
func initialize(_ context.Context, cfg *config.Config, _ *slog.Logger) (storage.Boundary, error) {
	sharedOnce.Do(func() {
		shared = New(Options{App: cfg.AppID})
	})
	return shared, nil
}

// Options configures the in-memory boundary.
type Options struct {
	// App is the application identifier an empty request scope resolves to.
	App string
	// Bucket is the bucket an empty request scope resolves to.
	Bucket string
}

// RecordedRequest is one boundary call as the store received it.
type RecordedRequest struct {
	Op    string
	Input any
}

type objKey struct {
	bucket string
	path   string
}

type scopeKey struct {
	app    string
	bucket string
}

type object struct {
	data  []byte
	attrs storage.ObjectAttrs
}

// Boundary is a map-backed storage boundary. Safe for concurrent use.
type Boundary struct {
	opts Options

	mu       sync.RWMutex
	objects  map[objKey]*object
	retries  map[scopeKey]map[storage.RetryKind]int64
	requests []RecordedRequest
}

var _ storage.Boundary = (*Boundary)(nil)

// New returns an empty in-memory boundary.
func New(opts Options) *Boundary {
	return &Boundary{
		opts:    opts,
		objects: make(map[objKey]*object),
		retries: make(map[scopeKey]map[storage.RetryKind]int64),
	}
}

// Requests returns a copy of every request the boundary has received, in
// arrival order.
func (b *Boundary) Requests() []RecordedRequest {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestsFor returns the recorded requests for one operation name.
func (b *Boundary) RequestsFor(op string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range b.Requests() {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

func (b *Boundary) record(op string, in any) {
	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{Op: op, Input: in})
	b.mu.Unlock()
}

func (b *Boundary) bucketFor(s storage.Scope) string {
	if s.Bucket != "" {
		return s.Bucket
	}
	return b.opts.Bucket
}

func (b *Boundary) appFor(s storage.Scope) string {
	if s.App != "" {
		return s.App
	}
	return b.opts.App
}

func defaultRetryMillis(kind storage.RetryKind) int64 {
	switch kind {
	case storage.RetryUpload:
		return storage.DefaultUploadRetryTime.Milliseconds()
	case storage.RetryOperation:
		return storage.DefaultOperationRetryTime.Milliseconds()
	default:
		return storage.DefaultDownloadRetryTime.Milliseconds()
	}
}

// GetRetryTime returns the stored window for the scope, falling back to the
// package defaults when nothing was written yet.
func (b *Boundary) GetRetryTime(ctx context.Context, in *storage.GetRetryTimeInput) (*storage.GetRetryTimeOutput, error) {
	b.record("getRetryTime", in)
	key := scopeKey{app: b.appFor(in.Scope), bucket: b.bucketFor(in.Scope)}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if kinds, ok := b.retries[key]; ok {
		if millis, ok := kinds[in.Kind]; ok {
			return &storage.GetRetryTimeOutput{Millis: millis}, nil
		}
	}
	return &storage.GetRetryTimeOutput{Millis: defaultRetryMillis(in.Kind)}, nil
}

func (b *Boundary) SetRetryTime(ctx context.Context, in *storage.SetRetryTimeInput) (*storage.SetRetryTimeOutput, error) {
	b.record("setRetryTime", in)
	key := scopeKey{app: b.appFor(in.Scope), bucket: b.bucketFor(in.Scope)}
	b.mu.Lock()
	defer b.mu.Unlock()
	kinds, ok := b.retries[key]
	if !ok {
		kinds = make(map[storage.RetryKind]int64)
		b.retries[key] = kinds
	}
	kinds[in.Kind] = in.Millis
	return &storage.SetRetryTimeOutput{}, nil
}

func (b *Boundary) ResolveBucket(ctx context.Context, in *storage.ResolveBucketInput) (*storage.ResolveBucketOutput, error) {
	b.record("resolveBucket", in)
	return &storage.ResolveBucketOutput{Bucket: b.bucketFor(in.Scope)}, nil
}

func (b *Boundary) ResolvePath(ctx context.Context, in *storage.ResolvePathInput) (*storage.ResolvePathOutput, error) {
	b.record("resolvePath", in)
	return &storage.ResolvePathOutput{Path: in.Path}, nil
}

func (b *Boundary) ResolveName(ctx context.Context, in *storage.ResolveNameInput) (*storage.ResolveNameOutput, error) {
	b.record("resolveName", in)
	return &storage.ResolveNameOutput{Name: lastSegment(in.Path)}, nil
}

// GetData returns the whole object, refusing anything larger than MaxSize
// when MaxSize is positive.
func (b *Boundary) GetData(ctx context.Context, in *storage.GetDataInput) (*storage.GetDataOutput, error) {
	b.record("getData", in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[objKey{bucket: b.bucketFor(in.Scope), path: in.Path}]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	if in.MaxSize > 0 && obj.attrs.Size > in.MaxSize {
		return nil, fmt.Errorf("object %q is %d bytes: %w", in.Path, obj.attrs.Size, storage.ErrSizeLimitExceeded)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return &storage.GetDataOutput{Data: data}, nil
}

func (b *Boundary) WriteToFile(ctx context.Context, in *storage.WriteToFileInput) (*storage.WriteToFileOutput, error) {
	b.record("writeToFile", in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	obj, ok := b.objects[objKey{bucket: b.bucketFor(in.Scope), path: in.Path}]
	var data []byte
	if ok {
		data = make([]byte, len(obj.data))
		copy(data, obj.data)
	}
	b.mu.RUnlock()
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	if err := os.WriteFile(in.FilePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", in.FilePath, err)
	}
	return &storage.WriteToFileOutput{BytesWritten: int64(len(data))}, nil
}

func (b *Boundary) PutFile(ctx context.Context, in *storage.PutFileInput) (*storage.PutObjectOutput, error) {
	b.record("putFile", in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	return b.put(in.Scope, in.Path, data, in.Metadata)
}

func (b *Boundary) PutData(ctx context.Context, in *storage.PutDataInput) (*storage.PutObjectOutput, error) {
	b.record("putData", in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.put(in.Scope, in.Path, in.Data, in.Metadata)
}

func (b *Boundary) put(scope storage.Scope, path string, data []byte, metadata map[string]any) (*storage.PutObjectOutput, error) {
	settable, err := storage.DecodeSettable(metadata)
	if err != nil {
		return nil, err
	}
	bucket := b.bucketFor(scope)
	now := time.Now().UTC()
	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	key := objKey{bucket: bucket, path: path}
	gen := int64(1)
	if prev, ok := b.objects[key]; ok {
		gen = prev.attrs.Generation + 1
	}
	attrs := storage.ObjectAttrs{
		Bucket:         bucket,
		Generation:     gen,
		Metageneration: 1,
		Path:           path,
		Name:           lastSegment(path),
		Size:           int64(len(data)),
		MD5Hash:        base64.StdEncoding.EncodeToString(sum[:]),
		Created:        now,
		Updated:        now,
	}
	settable.Apply(&attrs)
	stored := make([]byte, len(data))
	copy(stored, data)
	b.objects[key] = &object{data: stored, attrs: attrs}
	return &storage.PutObjectOutput{DownloadURL: downloadURL(bucket, path, gen)}, nil
}

func (b *Boundary) GetDownloadURL(ctx context.Context, in *storage.GetDownloadURLInput) (*storage.GetDownloadURLOutput, error) {
	b.record("getDownloadUrl", in)
	b.mu.RLock()
	defer b.mu.RUnlock()
	bucket := b.bucketFor(in.Scope)
	obj, ok := b.objects[objKey{bucket: bucket, path: in.Path}]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.GetDownloadURLOutput{URL: downloadURL(bucket, in.Path, obj.attrs.Generation)}, nil
}

func (b *Boundary) Delete(ctx context.Context, in *storage.DeleteInput) (*storage.DeleteOutput, error) {
	b.record("delete", in)
	b.mu.Lock()
	defer b.mu.Unlock()
	key := objKey{bucket: b.bucketFor(in.Scope), path: in.Path}
	if _, ok := b.objects[key]; !ok {
		return nil, storage.ErrObjectNotFound
	}
	delete(b.objects, key)
	return &storage.DeleteOutput{}, nil
}

func (b *Boundary) GetMetadata(ctx context.Context, in *storage.GetMetadataInput) (*storage.GetMetadataOutput, error) {
	b.record("getMetadata", in)
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[objKey{bucket: b.bucketFor(in.Scope), path: in.Path}]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.GetMetadataOutput{Metadata: storage.EncodeMetadata(obj.attrs)}, nil
}

func (b *Boundary) UpdateMetadata(ctx context.Context, in *storage.UpdateMetadataInput) (*storage.UpdateMetadataOutput, error) {
	b.record("updateMetadata", in)
	settable, err := storage.DecodeSettable(in.Metadata)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[objKey{bucket: b.bucketFor(in.Scope), path: in.Path}]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	settable.Apply(&obj.attrs)
	obj.attrs.Metageneration++
	obj.attrs.Updated = time.Now().UTC()
	return &storage.UpdateMetadataOutput{Metadata: storage.EncodeMetadata(obj.attrs)}, nil
}

// ListObjects walks the bucket in lexical order. Prefixes are reported on
// the first page only; the page token is the last path already returned.
func (b *Boundary) ListObjects(ctx context.Context, in *storage.ListObjectsInput) (*storage.ListObjectsOutput, error) {
	b.record("listObjects", in)
	bucket := b.bucketFor(in.Scope)

	b.mu.RLock()
	var paths []string
	prefixSet := make(map[string]struct{})
	for key := range b.objects {
		if key.bucket != bucket || !strings.HasPrefix(key.path, in.Prefix) {
			continue
		}
		rest := strings.TrimPrefix(key.path, in.Prefix)
		if in.Delimiter != "" {
			if i := strings.Index(rest, in.Delimiter); i >= 0 {
				prefixSet[in.Prefix+rest[:i+len(in.Delimiter)]] = struct{}{}
				continue
			}
		}
		paths = append(paths, key.path)
	}
	b.mu.RUnlock()

	sort.Strings(paths)
	out := &storage.ListObjectsOutput{}
	if in.PageToken == "" {
		for p := range prefixSet {
			out.Prefixes = append(out.Prefixes, p)
		}
		sort.Strings(out.Prefixes)
	} else {
		i := sort.SearchStrings(paths, in.PageToken)
		if i < len(paths) && paths[i] == in.PageToken {
			i++
		}
		paths = paths[i:]
	}
	if in.MaxResults > 0 && len(paths) > in.MaxResults {
		paths = paths[:in.MaxResults]
		out.NextPageToken = paths[len(paths)-1]
	}
	out.Paths = paths
	return out, nil
}

func (b *Boundary) BucketUsage(ctx context.Context, in *storage.BucketUsageInput) (*storage.BucketUsageOutput, error) {
	b.record("bucketUsage", in)
	bucket := b.bucketFor(in.Scope)
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := &storage.BucketUsageOutput{}
	for key, obj := range b.objects {
		if key.bucket != bucket {
			continue
		}
		out.TotalBytes += obj.attrs.Size
		out.ObjectCount++
	}
	return out, nil
}

func (b *Boundary) Close() error {
	return nil
}

func downloadURL(bucket, path string, generation int64) string {
	return fmt.Sprintf("https://objects.invalid/%s/%s?generation=%d", bucket, path, generation)
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
