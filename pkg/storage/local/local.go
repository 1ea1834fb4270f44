// Package local implements the storage boundary on an embedded badger
// database. It is the offline development target: objects and retry
// configuration survive restarts without any cloud credentials.
package local

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"cumulus/internal/config"
	"cumulus/internal/provider"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

func init() {
	provider.Register(common.Local, provider.Registration{
		ConfigCheck: isConfigured,
		Initializer: initialize,
	})
}

// Checks if the local configuration block is present and the path is set
func isConfigured(cfg *config.Config) bool {
	return cfg.Local != nil && cfg.Local.Path != ""
}

// Initializes the local boundary from the configuration
func initialize(_ context.Context, cfg *config.Config, logger *slog.Logger) (storage.Boundary, error) {
	if !isConfigured(cfg) {
		return nil, fmt.Errorf("local configuration missing or incomplete")
	}
	return Open(Options{
		Path:   cfg.Local.Path,
		App:    cfg.AppID,
		Bucket: cfg.Local.Bucket,
		Logger: logger,
	})
}

// Options configures the local boundary.
type Options struct {
	// Path is the directory badger stores its files in.
	Path string
	// App is the application identifier an empty request scope resolves to.
	App string
	// Bucket is the bucket an empty request scope resolves to.
	Bucket string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Boundary is a badger-backed storage boundary.
type Boundary struct {
	db     *badger.DB
	opts   Options
	logger *slog.Logger
}

var _ storage.Boundary = (*Boundary)(nil)

// Open opens (or creates) the store at opts.Path.
func Open(opts Options) (*Boundary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(badger.DefaultOptions(opts.Path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %s: %w", opts.Path, err)
	}
	return &Boundary{
		db:     db,
		opts:   opts,
		logger: logger.With("provider", "local"),
	}, nil
}

// Close flushes and closes the underlying database.
func (b *Boundary) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing badger store: %w", err)
	}
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
	key := keyRetry(b.appFor(in.Scope), b.bucketFor(in.Scope), in.Kind)
	out := &storage.GetRetryTimeOutput{Millis: defaultRetryMillis(in.Kind)}
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				out.Millis = int64(binary.BigEndian.Uint64(val))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading retry time: %w", err)
	}
	return out, nil
}

func (b *Boundary) SetRetryTime(ctx context.Context, in *storage.SetRetryTimeInput) (*storage.SetRetryTimeOutput, error) {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(in.Millis))
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyRetry(b.appFor(in.Scope), b.bucketFor(in.Scope), in.Kind), val)
	})
	if err != nil {
		return nil, fmt.Errorf("storing retry time: %w", err)
	}
	return &storage.SetRetryTimeOutput{}, nil
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bucket := b.bucketFor(in.Scope)
	data, err := b.readObject(bucket, in.Path)
	if err != nil {
		return nil, err
	}
	if in.MaxSize > 0 && int64(len(data)) > in.MaxSize {
		return nil, fmt.Errorf("object %q is %d bytes: %w", in.Path, len(data), storage.ErrSizeLimitExceeded)
	}
	return &storage.GetDataOutput{Data: data}, nil
}

func (b *Boundary) WriteToFile(ctx context.Context, in *storage.WriteToFileInput) (*storage.WriteToFileOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Debug("Starting local WriteToFile operation", "path", in.Path, "file", in.FilePath)
	data, err := b.readObject(b.bucketFor(in.Scope), in.Path)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(in.FilePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", in.FilePath, err)
	}
	return &storage.WriteToFileOutput{BytesWritten: int64(len(data))}, nil
}

func (b *Boundary) PutFile(ctx context.Context, in *storage.PutFileInput) (*storage.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Debug("Starting local PutFile operation", "path", in.Path, "file", in.FilePath)
	data, err := os.ReadFile(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	return b.put(in.Scope, in.Path, data, in.Metadata)
}

func (b *Boundary) PutData(ctx context.Context, in *storage.PutDataInput) (*storage.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Debug("Starting local PutData operation", "path", in.Path, "bytes", len(in.Data))
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

	err = b.db.Update(func(txn *badger.Txn) error {
		gen := int64(1)
		if prev, err := readAttrs(txn, bucket, path); err == nil {
			gen = prev.Generation + 1
		} else if err != storage.ErrObjectNotFound {
			return err
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
		if err := writeAttrs(txn, bucket, path, &attrs); err != nil {
			return err
		}
		return txn.Set(keyObject(bucket, path), data)
	})
	if err != nil {
		return nil, fmt.Errorf("storing object %q: %w", path, err)
	}
	return &storage.PutObjectOutput{DownloadURL: b.downloadURL(bucket, path)}, nil
}

func (b *Boundary) GetDownloadURL(ctx context.Context, in *storage.GetDownloadURLInput) (*storage.GetDownloadURLOutput, error) {
	bucket := b.bucketFor(in.Scope)
	if _, err := b.attrs(bucket, in.Path); err != nil {
		return nil, err
	}
	return &storage.GetDownloadURLOutput{URL: b.downloadURL(bucket, in.Path)}, nil
}

func (b *Boundary) Delete(ctx context.Context, in *storage.DeleteInput) (*storage.DeleteOutput, error) {
	b.logger.Debug("Starting local Delete operation", "path", in.Path)
	bucket := b.bucketFor(in.Scope)
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyAttrs(bucket, in.Path)); err == badger.ErrKeyNotFound {
			return storage.ErrObjectNotFound
		} else if err != nil {
			return err
		}
		if err := txn.Delete(keyObject(bucket, in.Path)); err != nil {
			return err
		}
		return txn.Delete(keyAttrs(bucket, in.Path))
	})
	if err != nil {
		return nil, err
	}
	return &storage.DeleteOutput{}, nil
}

func (b *Boundary) GetMetadata(ctx context.Context, in *storage.GetMetadataInput) (*storage.GetMetadataOutput, error) {
	attrs, err := b.attrs(b.bucketFor(in.Scope), in.Path)
	if err != nil {
		return nil, err
	}
	return &storage.GetMetadataOutput{Metadata: storage.EncodeMetadata(*attrs)}, nil
}

func (b *Boundary) UpdateMetadata(ctx context.Context, in *storage.UpdateMetadataInput) (*storage.UpdateMetadataOutput, error) {
	b.logger.Debug("Starting local UpdateMetadata operation", "path", in.Path)
	settable, err := storage.DecodeSettable(in.Metadata)
	if err != nil {
		return nil, err
	}
	bucket := b.bucketFor(in.Scope)
	var updated storage.ObjectAttrs
	err = b.db.Update(func(txn *badger.Txn) error {
		attrs, err := readAttrs(txn, bucket, in.Path)
		if err != nil {
			return err
		}
		settable.Apply(attrs)
		attrs.Metageneration++
		attrs.Updated = time.Now().UTC()
		updated = *attrs
		return writeAttrs(txn, bucket, in.Path, attrs)
	})
	if err != nil {
		return nil, err
	}
	return &storage.UpdateMetadataOutput{Metadata: storage.EncodeMetadata(updated)}, nil
}

// ListObjects range-scans the attribute namespace in lexical order. The page
// token is the last path already returned; prefixes come with the first page.
func (b *Boundary) ListObjects(ctx context.Context, in *storage.ListObjectsInput) (*storage.ListObjectsOutput, error) {
	b.logger.Debug("Starting local ListObjects operation", "prefix", in.Prefix)
	bucket := b.bucketFor(in.Scope)
	scanPrefix := keyAttrsPrefix(bucket, in.Prefix)
	strip := len(keyAttrsPrefix(bucket, ""))

	var paths []string
	prefixSet := make(map[string]struct{})
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			path := string(it.Item().Key()[strip:])
			rest := strings.TrimPrefix(path, in.Prefix)
			if in.Delimiter != "" {
				if i := strings.Index(rest, in.Delimiter); i >= 0 {
					prefixSet[in.Prefix+rest[:i+len(in.Delimiter)]] = struct{}{}
					continue
				}
			}
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}

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
	bucket := b.bucketFor(in.Scope)
	scanPrefix := keyAttrsPrefix(bucket, "")
	out := &storage.BucketUsageOutput{}
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var attrs storage.ObjectAttrs
				if err := json.Unmarshal(val, &attrs); err != nil {
					return err
				}
				out.TotalBytes += attrs.Size
				out.ObjectCount++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning bucket usage: %w", err)
	}
	return out, nil
}

func (b *Boundary) readObject(bucket, path string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyObject(bucket, path))
		if err == badger.ErrKeyNotFound {
			return storage.ErrObjectNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *Boundary) attrs(bucket, path string) (*storage.ObjectAttrs, error) {
	var attrs *storage.ObjectAttrs
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		attrs, err = readAttrs(txn, bucket, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

func readAttrs(txn *badger.Txn, bucket, path string) (*storage.ObjectAttrs, error) {
	item, err := txn.Get(keyAttrs(bucket, path))
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	var attrs storage.ObjectAttrs
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &attrs)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding stored attributes: %w", err)
	}
	return &attrs, nil
}

func writeAttrs(txn *badger.Txn, bucket, path string, attrs *storage.ObjectAttrs) error {
	val, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}
	return txn.Set(keyAttrs(bucket, path), val)
}

// downloadURL names the object's logical location under the store directory.
// The local store serves no HTTP; the file URL is a stable identifier for
// development and logs.
func (b *Boundary) downloadURL(bucket, path string) string {
	return "file://" + filepath.ToSlash(filepath.Join(b.opts.Path, bucket, path))
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

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
