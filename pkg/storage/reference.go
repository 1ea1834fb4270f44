package storage

import (
	"context"
	"fmt"
	"strings"
)

// Reference is an immutable descriptor of a location inside the scoped
// bucket. It holds no connection state and performs no I/O on its own;
// deriving children, parents and roots is pure path arithmetic. A Reference
// stays valid for the lifetime of the Service that produced it.
type Reference struct {
	svc      *Service
	segments []string
}

// Child derives a reference below r. The argument is read as a
// slash-separated sequence of segments appended in order; empty segments
// produced by doubled, leading or trailing slashes are preserved verbatim,
// and no ".."/"." normalization is applied. Composition holds:
// r.Child("a").Child("b") addresses the same location as r.Child("a/b").
func (r *Reference) Child(relativePath string) *Reference {
	parts := strings.Split(relativePath, "/")
	segments := make([]string, 0, len(r.segments)+len(parts))
	segments = append(segments, r.segments...)
	segments = append(segments, parts...)
	return &Reference{svc: r.svc, segments: segments}
}

// Parent returns the reference one level up, dropping any trailing empty
// segments together with the final named one. At the root it returns nil.
func (r *Reference) Parent() *Reference {
	end := len(r.segments)
	for end > 0 && r.segments[end-1] == "" {
		end--
	}
	if end == 0 {
		return nil
	}
	segments := make([]string, end-1)
	copy(segments, r.segments[:end-1])
	return &Reference{svc: r.svc, segments: segments}
}

// Root returns the empty-path reference of the owning service.
func (r *Reference) Root() *Reference {
	return &Reference{svc: r.svc}
}

// Path returns the slash-joined local form of the reference.
func (r *Reference) Path() string {
	return strings.Join(r.segments, "/")
}

// Name returns the final path segment, or "" at the root.
func (r *Reference) Name() string {
	if len(r.segments) == 0 {
		return ""
	}
	return r.segments[len(r.segments)-1]
}

// Equal reports whether two references address the same location. Segment
// sequences never contain slashes, so comparing joined paths is exact.
func (r *Reference) Equal(other *Reference) bool {
	if other == nil {
		return false
	}
	return r.Path() == other.Path()
}

func (r *Reference) String() string {
	return r.Path()
}

// Service returns the handle this reference was derived from.
func (r *Reference) Service() *Service {
	return r.svc
}

// BucketName asks the storage side which bucket this reference resolves to.
func (r *Reference) BucketName(ctx context.Context) (string, error) {
	out, err := r.svc.boundary.ResolveBucket(ctx, &ResolveBucketInput{Scope: r.svc.scope(), Path: r.Path()})
	if err != nil {
		return "", fmt.Errorf("resolving bucket for %q: %w", r.Path(), err)
	}
	return out.Bucket, nil
}

// CanonicalPath asks the storage side for its canonical form of the path,
// which may differ from the local join when the backend normalizes names.
func (r *Reference) CanonicalPath(ctx context.Context) (string, error) {
	out, err := r.svc.boundary.ResolvePath(ctx, &ResolvePathInput{Scope: r.svc.scope(), Path: r.Path()})
	if err != nil {
		return "", fmt.Errorf("resolving path for %q: %w", r.Path(), err)
	}
	return out.Path, nil
}

// CanonicalName asks the storage side for the display name of the object.
func (r *Reference) CanonicalName(ctx context.Context) (string, error) {
	out, err := r.svc.boundary.ResolveName(ctx, &ResolveNameInput{Scope: r.svc.scope(), Path: r.Path()})
	if err != nil {
		return "", fmt.Errorf("resolving name for %q: %w", r.Path(), err)
	}
	return out.Name, nil
}

// Data fetches the whole object into memory, refusing objects larger than
// maxSize bytes with ErrSizeLimitExceeded.
func (r *Reference) Data(ctx context.Context, maxSize int64) ([]byte, error) {
	out, err := r.svc.boundary.GetData(ctx, &GetDataInput{Scope: r.svc.scope(), Path: r.Path(), MaxSize: maxSize})
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DownloadURL returns a URL from which the object's content can be fetched.
func (r *Reference) DownloadURL(ctx context.Context) (string, error) {
	out, err := r.svc.boundary.GetDownloadURL(ctx, &GetDownloadURLInput{Scope: r.svc.scope(), Path: r.Path()})
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// Delete removes the object. Deleting a missing object reports
// ErrObjectNotFound.
func (r *Reference) Delete(ctx context.Context) error {
	_, err := r.svc.boundary.Delete(ctx, &DeleteInput{Scope: r.svc.scope(), Path: r.Path()})
	return err
}

// Metadata fetches the object's stored metadata.
func (r *Reference) Metadata(ctx context.Context) (*Metadata, error) {
	out, err := r.svc.boundary.GetMetadata(ctx, &GetMetadataInput{Scope: r.svc.scope(), Path: r.Path()})
	if err != nil {
		return nil, err
	}
	return ParseMetadata(out.Metadata)
}

// UpdateMetadata applies the writable fields of md to the stored object and
// returns the server's resulting metadata. Only the writable fields travel
// in the request; nil fields are left alone and empty strings delete the
// stored value.
func (r *Reference) UpdateMetadata(ctx context.Context, md *Metadata) (*Metadata, error) {
	out, err := r.svc.boundary.UpdateMetadata(ctx, &UpdateMetadataInput{
		Scope:    r.svc.scope(),
		Path:     r.Path(),
		Metadata: md.settableMap(),
	})
	if err != nil {
		return nil, err
	}
	return ParseMetadata(out.Metadata)
}

// List returns one page of the objects and prefixes directly below this
// reference, using "/" as the hierarchy delimiter.
func (r *Reference) List(ctx context.Context, opts ListOptions) (*ObjectList, error) {
	prefix := r.Path()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out, err := r.svc.boundary.ListObjects(ctx, &ListObjectsInput{
		Scope:      r.svc.scope(),
		Prefix:     prefix,
		Delimiter:  "/",
		MaxResults: opts.MaxResults,
		PageToken:  opts.PageToken,
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects under %q: %w", prefix, err)
	}
	list := &ObjectList{
		Prefixes:      out.Prefixes,
		NextPageToken: out.NextPageToken,
	}
	root := r.Root()
	for _, p := range out.Paths {
		list.Items = append(list.Items, root.Child(p))
	}
	return list, nil
}

// ListAll drains every page below this reference. Convenient for small
// trees; prefer List with paging for large ones.
func (r *Reference) ListAll(ctx context.Context) ([]*Reference, error) {
	var items []*Reference
	opts := ListOptions{}
	for {
		page, err := r.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextPageToken == "" {
			return items, nil
		}
		opts.PageToken = page.NextPageToken
	}
}
