package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"cumulus/pkg/storage"
)

const signedURLExpiry = 15 * time.Minute

func (g *Boundary) ResolveBucket(ctx context.Context, in *storage.ResolveBucketInput) (*storage.ResolveBucketOutput, error) {
	return &storage.ResolveBucketOutput{Bucket: g.bucketFor(in.Scope)}, nil
}

func (g *Boundary) ResolvePath(ctx context.Context, in *storage.ResolvePathInput) (*storage.ResolvePathOutput, error) {
	return &storage.ResolvePathOutput{Path: in.Path}, nil
}

func (g *Boundary) ResolveName(ctx context.Context, in *storage.ResolveNameInput) (*storage.ResolveNameOutput, error) {
	return &storage.ResolveNameOutput{Name: lastSegment(in.Path)}, nil
}

func (g *Boundary) GetData(ctx context.Context, in *storage.GetDataInput) (*storage.GetDataOutput, error) {
	g.logger.Debug("Starting GCS GetData operation", "path", in.Path, "maxSize", in.MaxSize)
	ctx, cancel := g.withRetryWindow(ctx, in.Scope, storage.RetryDownload)
	defer cancel()

	handle := g.client.Bucket(g.bucketFor(in.Scope)).Object(in.Path)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	if in.MaxSize > 0 && attrs.Size > in.MaxSize {
		return nil, fmt.Errorf("object %q is %d bytes: %w", in.Path, attrs.Size, storage.ErrSizeLimitExceeded)
	}

	r, err := handle.NewReader(ctx)
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", in.Path, err)
	}
	return &storage.GetDataOutput{Data: data}, nil
}

func (g *Boundary) WriteToFile(ctx context.Context, in *storage.WriteToFileInput) (*storage.WriteToFileOutput, error) {
	g.logger.Debug("Starting GCS WriteToFile operation", "path", in.Path, "file", in.FilePath)
	ctx, cancel := g.withRetryWindow(ctx, in.Scope, storage.RetryDownload)
	defer cancel()

	r, err := g.client.Bucket(g.bucketFor(in.Scope)).Object(in.Path).NewReader(ctx)
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	defer r.Close()

	f, err := os.Create(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", in.FilePath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", in.FilePath, err)
	}
	return &storage.WriteToFileOutput{BytesWritten: n}, nil
}

func (g *Boundary) PutFile(ctx context.Context, in *storage.PutFileInput) (*storage.PutObjectOutput, error) {
	g.logger.Debug("Starting GCS PutFile operation", "path", in.Path, "file", in.FilePath)
	f, err := os.Open(in.FilePath)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()
	return g.upload(ctx, in.Scope, in.Path, f, in.Metadata)
}

func (g *Boundary) PutData(ctx context.Context, in *storage.PutDataInput) (*storage.PutObjectOutput, error) {
	g.logger.Debug("Starting GCS PutData operation", "path", in.Path, "bytes", len(in.Data))
	return g.upload(ctx, in.Scope, in.Path, bytes.NewReader(in.Data), in.Metadata)
}

func (g *Boundary) upload(ctx context.Context, scope storage.Scope, path string, body io.Reader, metadata map[string]any) (*storage.PutObjectOutput, error) {
	settable, err := storage.DecodeSettable(metadata)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.withRetryWindow(ctx, scope, storage.RetryUpload)
	defer cancel()

	bucket := g.bucketFor(scope)
	w := g.client.Bucket(bucket).Object(path).NewWriter(ctx)
	if settable.CacheControl != nil {
		w.CacheControl = *settable.CacheControl
	}
	if settable.ContentDisposition != nil {
		w.ContentDisposition = *settable.ContentDisposition
	}
	if settable.ContentEncoding != nil {
		w.ContentEncoding = *settable.ContentEncoding
	}
	if settable.ContentLanguage != nil {
		w.ContentLanguage = *settable.ContentLanguage
	}
	if settable.ContentType != nil {
		w.ContentType = *settable.ContentType
	}
	if settable.CustomMetadata != nil {
		w.Metadata = settable.CustomMetadata
	}

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return nil, fmt.Errorf("uploading %q: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing upload of %q: %w", path, err)
	}
	return &storage.PutObjectOutput{DownloadURL: g.downloadURL(bucket, path)}, nil
}

func (g *Boundary) GetDownloadURL(ctx context.Context, in *storage.GetDownloadURLInput) (*storage.GetDownloadURLOutput, error) {
	bucket := g.bucketFor(in.Scope)
	if _, err := g.client.Bucket(bucket).Object(in.Path).Attrs(ctx); err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	return &storage.GetDownloadURLOutput{URL: g.downloadURL(bucket, in.Path)}, nil
}

// downloadURL prefers a V4 signed URL and falls back to the public object URL
// when the ambient credentials cannot sign.
func (g *Boundary) downloadURL(bucket, path string) string {
	url, err := g.client.Bucket(bucket).SignedURL(path, &gcsstorage.SignedURLOptions{
		Scheme:  gcsstorage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(signedURLExpiry),
	})
	if err != nil {
		g.logger.Warn("Could not sign download URL, falling back to public URL", "bucket", bucket, "path", path, "error", err)
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, path)
	}
	return url
}

func (g *Boundary) Delete(ctx context.Context, in *storage.DeleteInput) (*storage.DeleteOutput, error) {
	g.logger.Debug("Starting GCS Delete operation", "path", in.Path)
	ctx, cancel := g.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	err := g.client.Bucket(g.bucketFor(in.Scope)).Object(in.Path).Delete(ctx)
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	return &storage.DeleteOutput{}, nil
}

func (g *Boundary) GetMetadata(ctx context.Context, in *storage.GetMetadataInput) (*storage.GetMetadataOutput, error) {
	g.logger.Debug("Starting GCS GetMetadata operation", "path", in.Path)
	ctx, cancel := g.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	attrs, err := g.client.Bucket(g.bucketFor(in.Scope)).Object(in.Path).Attrs(ctx)
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	return &storage.GetMetadataOutput{Metadata: storage.EncodeMetadata(mapObjectAttributes(attrs))}, nil
}

// UpdateMetadata maps the nil / empty / value wire semantics directly onto
// ObjectAttrsToUpdate: unset fields stay untouched and empty strings clear
// the stored attribute.
func (g *Boundary) UpdateMetadata(ctx context.Context, in *storage.UpdateMetadataInput) (*storage.UpdateMetadataOutput, error) {
	g.logger.Debug("Starting GCS UpdateMetadata operation", "path", in.Path)
	settable, err := storage.DecodeSettable(in.Metadata)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	upd := gcsstorage.ObjectAttrsToUpdate{}
	if settable.CacheControl != nil {
		upd.CacheControl = *settable.CacheControl
	}
	if settable.ContentDisposition != nil {
		upd.ContentDisposition = *settable.ContentDisposition
	}
	if settable.ContentEncoding != nil {
		upd.ContentEncoding = *settable.ContentEncoding
	}
	if settable.ContentLanguage != nil {
		upd.ContentLanguage = *settable.ContentLanguage
	}
	if settable.ContentType != nil {
		upd.ContentType = *settable.ContentType
	}
	if settable.CustomMetadata != nil {
		upd.Metadata = settable.CustomMetadata
	}

	attrs, err := g.client.Bucket(g.bucketFor(in.Scope)).Object(in.Path).Update(ctx, upd)
	if err != nil {
		return nil, mapNotFound(in.Path, err)
	}
	return &storage.UpdateMetadataOutput{Metadata: storage.EncodeMetadata(mapObjectAttributes(attrs))}, nil
}

func (g *Boundary) ListObjects(ctx context.Context, in *storage.ListObjectsInput) (*storage.ListObjectsOutput, error) {
	g.logger.Debug("Starting GCS ListObjects operation (delimited)", "prefix", in.Prefix)
	ctx, cancel := g.withRetryWindow(ctx, in.Scope, storage.RetryOperation)
	defer cancel()

	query := &gcsstorage.Query{
		Prefix:    in.Prefix,
		Delimiter: in.Delimiter,
	}
	it := g.client.Bucket(g.bucketFor(in.Scope)).Objects(ctx, query)
	out := &storage.ListObjectsOutput{}

	if in.MaxResults > 0 {
		pager := iterator.NewPager(it, in.MaxResults, in.PageToken)
		var page []*gcsstorage.ObjectAttrs
		next, err := pager.NextPage(&page)
		if err != nil {
			return nil, fmt.Errorf("error iterating objects: %w", err)
		}
		out.NextPageToken = next
		for _, attrs := range page {
			collect(out, attrs)
		}
		return out, nil
	}

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating objects: %w", err)
		}
		collect(out, attrs)
	}
	return out, nil
}

// If attrs.Prefix is set, it's a common prefix (directory); otherwise an object
func collect(out *storage.ListObjectsOutput, attrs *gcsstorage.ObjectAttrs) {
	if attrs.Prefix != "" {
		out.Prefixes = append(out.Prefixes, attrs.Prefix)
		return
	}
	out.Paths = append(out.Paths, attrs.Name)
}

func mapNotFound(path string, err error) error {
	if errors.Is(err, gcsstorage.ErrObjectNotExist) {
		return fmt.Errorf("object %q: %w", path, storage.ErrObjectNotFound)
	}
	return err
}
