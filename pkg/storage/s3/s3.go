// Package s3 implements the storage boundary on Amazon S3 or any
// S3-compatible endpoint (MinIO, Localstack, Cubbit). Transfers go through
// the SDK transfer manager; retry windows stored through SetRetryTime are
// applied as per-call deadlines on top of the SDK's standard retryer.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cumulus/internal/config"
	"cumulus/internal/provider"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

const presignExpiry = 15 * time.Minute

func init() {
	provider.Register(common.S3, provider.Registration{
		ConfigCheck: isConfigured,
		Initializer: initialize,
	})
}

// Checks if the S3 configuration block is present and the region is set
func isConfigured(cfg *config.Config) bool {
	return cfg.S3 != nil && cfg.S3.Region != ""
}

// Initializes the S3 boundary from the configuration
func initialize(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Boundary, error) {
	if !isConfigured(cfg) {
		return nil, fmt.Errorf("S3 configuration missing or incomplete")
	}
	if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
		return nil, fmt.Errorf("s3: access_key_id and secret_access_key must be set together")
	}
	return New(ctx, Options{
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		App:             cfg.AppID,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Logger:          logger,
	})
}

// Options configures the S3 boundary.
type Options struct {
	// Region is required.
	Region string
	// Bucket is the bucket an empty request scope resolves to.
	Bucket string
	// App is the application identifier an empty request scope resolves to.
	App string
	// Endpoint overrides the S3 endpoint for S3-compatible stores. When set,
	// path-style addressing is forced.
	Endpoint string
	// AccessKeyID and SecretAccessKey select static credentials; leave both
	// empty to use the default credential chain.
	AccessKeyID     string
	SecretAccessKey string
	// MaxRetries bounds SDK retry attempts per request. Defaults to 10.
	MaxRetries int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type scopeKey struct {
	app    string
	bucket string
}

// Boundary is an S3-backed storage boundary.
type Boundary struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	uploader   *manager.Uploader
	downloader *manager.Downloader
	opts       Options
	logger     *slog.Logger

	// S3 offers no server-side home for client retry preferences, so the
	// boundary keeps them for the process lifetime.
	mu      sync.RWMutex
	retries map[scopeKey]map[storage.RetryKind]int64
}

var _ storage.Boundary = (*Boundary)(nil)

// New builds the S3 client per Options and wraps it as a boundary.
func New(ctx context.Context, opts Options) (*Boundary, error) {
	if opts.Region == "" {
		return nil, fmt.Errorf("s3 boundary: region is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	if opts.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(provider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Boundary{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		opts:       opts,
		logger:     logger.With("provider", "s3"),
		retries:    make(map[scopeKey]map[storage.RetryKind]int64),
	}, nil
}

// Close is a no-op; the SDK client holds no connections that need closing.
func (b *Boundary) Close() error {
	return nil
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

func (b *Boundary) GetRetryTime(ctx context.Context, in *storage.GetRetryTimeInput) (*storage.GetRetryTimeOutput, error) {
	return &storage.GetRetryTimeOutput{Millis: b.retryMillis(in.Scope, in.Kind)}, nil
}

func (b *Boundary) SetRetryTime(ctx context.Context, in *storage.SetRetryTimeInput) (*storage.SetRetryTimeOutput, error) {
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

func (b *Boundary) retryMillis(scope storage.Scope, kind storage.RetryKind) int64 {
	key := scopeKey{app: b.appFor(scope), bucket: b.bucketFor(scope)}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if kinds, ok := b.retries[key]; ok {
		if millis, ok := kinds[kind]; ok {
			return millis
		}
	}
	switch kind {
	case storage.RetryUpload:
		return storage.DefaultUploadRetryTime.Milliseconds()
	case storage.RetryOperation:
		return storage.DefaultOperationRetryTime.Milliseconds()
	default:
		return storage.DefaultDownloadRetryTime.Milliseconds()
	}
}

// withRetryWindow caps ctx at the stored window for the operation class, so
// the SDK retryer stops retrying once the window is spent.
func (b *Boundary) withRetryWindow(ctx context.Context, scope storage.Scope, kind storage.RetryKind) (context.Context, context.CancelFunc) {
	millis := b.retryMillis(scope, kind)
	if millis <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(millis)*time.Millisecond)
}

func (b *Boundary) ResolveBucket(ctx context.Context, in *storage.ResolveBucketInput) (*storage.ResolveBucketOutput, error) {
	return &storage.ResolveBucketOutput{Bucket: b.bucketFor(in.Scope)}, nil
}

func (b *Boundary) ResolvePath(ctx context.Context, in *storage.ResolvePathInput) (*storage.ResolvePathOutput, error) {
	return &storage.ResolvePathOutput{Path: in.Path}, nil
}

func (b *Boundary) ResolveName(ctx context.Context, in *storage.ResolveNameInput) (*storage.ResolveNameOutput, error) {
	return &storage.ResolveNameOutput{Name: lastSegment(in.Path)}, nil
}

func (b *Boundary) GetData(ctx context.Context, in *storage.GetDataInput) (*storage.GetDataOutput, error) {
	b.logger.Debug("Starting S3 GetData operation", "path", in.Path, "maxSize", in.MaxSize)
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryDownload)
	defer cancel()

	bucket := b.bucketFor(in.Scope)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(in.Path),
	})
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	defer out.Body.Close()

	if in.MaxSize > 0 && out.ContentLength != nil && *out.ContentLength > in.MaxSize {
		return nil, fmt.Errorf("object %q is %d bytes: %w", in.Path, *out.ContentLength, storage.ErrSizeLimitExceeded)
	}

	var buf bytes.Buffer
	if out.ContentLength != nil {
		buf.Grow(int(*out.ContentLength))
	}
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("reading object body: %w", err)
	}
	if in.MaxSize > 0 && int64(buf.Len()) > in.MaxSize {
		return nil, fmt.Errorf("object %q is %d bytes: %w", in.Path, buf.Len(), storage.ErrSizeLimitExceeded)
	}
	return &storage.GetDataOutput{Data: buf.Bytes()}, nil
}

func (b *Boundary) WriteToFile(ctx context.Context, in *storage.WriteToFileInput) (*storage.WriteToFileOutput, error) {
	b.logger.Debug("Starting S3 WriteToFile operation", "path", in.Path, "file", in.FilePath)
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryDownload)
	defer cancel()

	f, err := os.Create(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", in.FilePath, err)
	}
	defer f.Close()

	n, err := b.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketFor(in.Scope)),
		Key:    aws.String(in.Path),
	})
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	return &storage.WriteToFileOutput{BytesWritten: n}, nil
}

func (b *Boundary) PutFile(ctx context.Context, in *storage.PutFileInput) (*storage.PutObjectOutput, error) {
	b.logger.Debug("Starting S3 PutFile operation", "path", in.Path, "file", in.FilePath)
	f, err := os.Open(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()
	return b.upload(ctx, in.Scope, in.Path, f, in.Metadata)
}

func (b *Boundary) PutData(ctx context.Context, in *storage.PutDataInput) (*storage.PutObjectOutput, error) {
	b.logger.Debug("Starting S3 PutData operation", "path", in.Path, "bytes", len(in.Data))
	return b.upload(ctx, in.Scope, in.Path, bytes.NewReader(in.Data), in.Metadata)
}

func (b *Boundary) upload(ctx context.Context, scope storage.Scope, path string, body io.Reader, metadata map[string]any) (*storage.PutObjectOutput, error) {
	settable, err := storage.DecodeSettable(metadata)
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withRetryWindow(ctx, scope, storage.RetryUpload)
	defer cancel()

	bucket := b.bucketFor(scope)
	input := &s3.PutObjectInput{
		Bucket:             aws.String(bucket),
		Key:                aws.String(path),
		Body:               body,
		CacheControl:       settable.CacheControl,
		ContentDisposition: settable.ContentDisposition,
		ContentEncoding:    settable.ContentEncoding,
		ContentLanguage:    settable.ContentLanguage,
		ContentType:        settable.ContentType,
	}
	if len(settable.CustomMetadata) > 0 {
		input.Metadata = settable.CustomMetadata
	}
	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return nil, fmt.Errorf("uploading %q: %w", path, err)
	}

	url, err := b.presignGet(ctx, bucket, path)
	if err != nil {
		return nil, err
	}
	return &storage.PutObjectOutput{DownloadURL: url}, nil
}

func (b *Boundary) GetDownloadURL(ctx context.Context, in *storage.GetDownloadURLInput) (*storage.GetDownloadURLOutput, error) {
	bucket := b.bucketFor(in.Scope)
	if _, err := b.head(ctx, bucket, in.Path); err != nil {
		return nil, err
	}
	url, err := b.presignGet(ctx, bucket, in.Path)
	if err != nil {
		return nil, err
	}
	return &storage.GetDownloadURLOutput{URL: url}, nil
}

func (b *Boundary) presignGet(ctx context.Context, bucket, key string) (string, error) {
	req, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presigning download URL for %q: %w", key, err)
	}
	return req.URL, nil
}

func (b *Boundary) Delete(ctx context.Context, in *storage.DeleteInput) (*storage.DeleteOutput, error) {
	b.logger.Debug("Starting S3 Delete operation", "path", in.Path)
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	bucket := b.bucketFor(in.Scope)
	// DeleteObject succeeds on missing keys, so probe first to honor the
	// not-found contract.
	if _, err := b.head(ctx, bucket, in.Path); err != nil {
		return nil, err
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(in.Path),
	})
	if err != nil {
		return nil, fmt.Errorf("deleting %q: %w", in.Path, err)
	}
	return &storage.DeleteOutput{}, nil
}

func (b *Boundary) GetMetadata(ctx context.Context, in *storage.GetMetadataInput) (*storage.GetMetadataOutput, error) {
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	bucket := b.bucketFor(in.Scope)
	head, err := b.head(ctx, bucket, in.Path)
	if err != nil {
		return nil, err
	}
	return &storage.GetMetadataOutput{Metadata: storage.EncodeMetadata(attrsFromHead(bucket, in.Path, head))}, nil
}

// UpdateMetadata rewrites object headers with a same-key CopyObject using
// MetadataDirective REPLACE, which is the only way S3 mutates them.
func (b *Boundary) UpdateMetadata(ctx context.Context, in *storage.UpdateMetadataInput) (*storage.UpdateMetadataOutput, error) {
	b.logger.Debug("Starting S3 UpdateMetadata operation", "path", in.Path)
	settable, err := storage.DecodeSettable(in.Metadata)
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	bucket := b.bucketFor(in.Scope)
	head, err := b.head(ctx, bucket, in.Path)
	if err != nil {
		return nil, err
	}
	attrs := attrsFromHead(bucket, in.Path, head)
	settable.Apply(&attrs)

	copyInput := &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(in.Path),
		CopySource:        aws.String(bucket + "/" + in.Path),
		MetadataDirective: types.MetadataDirectiveReplace,
	}
	if attrs.CacheControl != "" {
		copyInput.CacheControl = aws.String(attrs.CacheControl)
	}
	if attrs.ContentDisposition != "" {
		copyInput.ContentDisposition = aws.String(attrs.ContentDisposition)
	}
	if attrs.ContentEncoding != "" {
		copyInput.ContentEncoding = aws.String(attrs.ContentEncoding)
	}
	if attrs.ContentLanguage != "" {
		copyInput.ContentLanguage = aws.String(attrs.ContentLanguage)
	}
	if attrs.ContentType != "" {
		copyInput.ContentType = aws.String(attrs.ContentType)
	}
	if len(attrs.CustomMetadata) > 0 {
		copyInput.Metadata = attrs.CustomMetadata
	}
	if _, err := b.client.CopyObject(ctx, copyInput); err != nil {
		return nil, fmt.Errorf("rewriting metadata for %q: %w", in.Path, err)
	}

	head, err = b.head(ctx, bucket, in.Path)
	if err != nil {
		return nil, err
	}
	return &storage.UpdateMetadataOutput{Metadata: storage.EncodeMetadata(attrsFromHead(bucket, in.Path, head))}, nil
}

func (b *Boundary) ListObjects(ctx context.Context, in *storage.ListObjectsInput) (*storage.ListObjectsOutput, error) {
	b.logger.Debug("Starting S3 ListObjects operation", "prefix", in.Prefix)
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucketFor(in.Scope)),
		Prefix: aws.String(in.Prefix),
	}
	if in.Delimiter != "" {
		input.Delimiter = aws.String(in.Delimiter)
	}
	if in.MaxResults > 0 {
		input.MaxKeys = aws.Int32(int32(in.MaxResults))
	}
	if in.PageToken != "" {
		input.ContinuationToken = aws.String(in.PageToken)
	}

	page, err := b.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	out := &storage.ListObjectsOutput{
		NextPageToken: aws.ToString(page.NextContinuationToken),
	}
	for _, obj := range page.Contents {
		out.Paths = append(out.Paths, aws.ToString(obj.Key))
	}
	for _, p := range page.CommonPrefixes {
		out.Prefixes = append(out.Prefixes, aws.ToString(p.Prefix))
	}
	return out, nil
}

func (b *Boundary) BucketUsage(ctx context.Context, in *storage.BucketUsageInput) (*storage.BucketUsageOutput, error) {
	b.logger.Debug("Starting S3 BucketUsage operation")
	ctx, cancel := b.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	out := &storage.BucketUsageOutput{}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucketFor(in.Scope)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects for usage: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Size != nil {
				out.TotalBytes += *obj.Size
			}
			out.ObjectCount++
		}
	}
	return out, nil
}

func (b *Boundary) head(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapNotFound(key, err)
	}
	return out, nil
}

func attrsFromHead(bucket, key string, head *s3.HeadObjectOutput) storage.ObjectAttrs {
	attrs := storage.ObjectAttrs{
		Bucket:             bucket,
		Path:               key,
		Name:               lastSegment(key),
		Size:               aws.ToInt64(head.ContentLength),
		MD5Hash:            strings.Trim(aws.ToString(head.ETag), `"`),
		CacheControl:       aws.ToString(head.CacheControl),
		ContentDisposition: aws.ToString(head.ContentDisposition),
		ContentEncoding:    aws.ToString(head.ContentEncoding),
		ContentLanguage:    aws.ToString(head.ContentLanguage),
		ContentType:        aws.ToString(head.ContentType),
	}
	if len(head.Metadata) > 0 {
		attrs.CustomMetadata = head.Metadata
	}
	if head.LastModified != nil {
		attrs.Created = *head.LastModified
		attrs.Updated = *head.LastModified
	}
	return attrs
}

func mapNotFound(path string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("object %q: %w", path, storage.ErrObjectNotFound)
	}
	return err
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
