package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"cumulus/internal/config"
	"cumulus/internal/provider"
	"cumulus/pkg/storage"
)

// maxConcurrentTransfers bounds how many batch transfers run at once.
const maxConcurrentTransfers = 4

// Target selects the boundary and scope a single operation runs against.
// An empty Provider falls back to the configured default; an empty Bucket
// falls back to the provider's configured bucket.
type Target struct {
	Provider string
	Bucket   string
	App      string
}

// TransferSpec pairs a local file with a remote object path.
type TransferSpec struct {
	LocalFile  string
	RemotePath string
}

// StorageService orchestrates object operations for the CLI. Each call
// opens the target boundary, runs the operation through a storage.Service
// handle, and closes the boundary again.
type StorageService struct {
	providerFactory *provider.Factory
	cfg             *config.Config
	logger          *slog.Logger
}

func NewStorageService(providerFactory *provider.Factory, cfg *config.Config, logger *slog.Logger) *StorageService {
	return &StorageService{
		providerFactory: providerFactory,
		cfg:             cfg,
		logger:          logger.With("service", "StorageService"),
	}
}

// open resolves the target into a service handle backed by a live boundary.
// The caller owns closing the returned boundary.
func (s *StorageService) open(ctx context.Context, target Target) (*storage.Service, storage.Boundary, error) {
	providerName := target.Provider
	if providerName == "" {
		providerName = s.cfg.DefaultProvider
	}
	if providerName == "" {
		return nil, nil, fmt.Errorf("no provider selected. Pass --provider or run 'cumulus config set default_provider <name>'")
	}

	boundary, err := s.providerFactory.GetBoundary(ctx, providerName)
	if err != nil {
		s.logger.Error("Failed to initialize provider", "provider", providerName, "error", err)
		return nil, nil, fmt.Errorf("error initializing provider: %w", err)
	}

	app := target.App
	if app == "" {
		app = s.cfg.AppID
	}

	svc := storage.NewService(boundary, storage.ServiceOptions{
		App:    app,
		Bucket: target.Bucket,
		Logger: s.logger,
	})
	return svc, boundary, nil
}

// --- Transfer Operations ---

// Upload starts a single upload task. The returned release function closes
// the underlying boundary and must be called once the task has resolved.
func (s *StorageService) Upload(ctx context.Context, target Target, localFile, remotePath string, md *storage.Metadata) (*storage.UploadTask, func() error, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("Starting Upload operation", "file", localFile, "path", remotePath)

	task := svc.RefAt(remotePath).PutFile(ctx, localFile, md)
	return task, boundary.Close, nil
}

// Download starts a single download task. The returned release function
// closes the underlying boundary and must be called once the task has
// resolved.
func (s *StorageService) Download(ctx context.Context, target Target, remotePath, localFile string) (*storage.DownloadTask, func() error, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("Starting Download operation", "path", remotePath, "file", localFile)

	task := svc.RefAt(remotePath).WriteToFile(ctx, localFile)
	return task, boundary.Close, nil
}

// UploadMany uploads the given files concurrently and returns their
// snapshots in spec order. The first failure cancels the remaining
// transfers.
func (s *StorageService) UploadMany(ctx context.Context, target Target, specs []TransferSpec, md *storage.Metadata) ([]*storage.UploadSnapshot, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting UploadMany operation", "count", len(specs))

	snapshots := make([]*storage.UploadSnapshot, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTransfers)

	for i, spec := range specs {
		g.Go(func() error {
			task := svc.RefAt(spec.RemotePath).PutFile(gctx, spec.LocalFile, md)
			snapshot, err := task.Await(gctx)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", spec.LocalFile, err)
			}
			snapshots[i] = snapshot
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// DownloadMany downloads the given objects concurrently and returns their
// snapshots in spec order. The first failure cancels the remaining
// transfers.
func (s *StorageService) DownloadMany(ctx context.Context, target Target, specs []TransferSpec) ([]*storage.DownloadSnapshot, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting DownloadMany operation", "count", len(specs))

	snapshots := make([]*storage.DownloadSnapshot, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTransfers)

	for i, spec := range specs {
		g.Go(func() error {
			task := svc.RefAt(spec.RemotePath).WriteToFile(gctx, spec.LocalFile)
			snapshot, err := task.Await(gctx)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", spec.RemotePath, err)
			}
			snapshots[i] = snapshot
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// --- Object Operations ---

// Cat reads an object into memory, capped at maxSize bytes when maxSize is
// positive.
func (s *StorageService) Cat(ctx context.Context, target Target, remotePath string, maxSize int64) ([]byte, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting Cat operation", "path", remotePath)

	data, err := svc.RefAt(remotePath).Data(ctx, maxSize)
	if err != nil {
		s.logger.Error("Failed to read object", "path", remotePath, "error", err)
		return nil, err
	}
	return data, nil
}

// List returns one page of objects under the given directory-like path.
func (s *StorageService) List(ctx context.Context, target Target, path string, opts storage.ListOptions) (*storage.ObjectList, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting List operation", "path", path)

	list, err := svc.RefAt(path).List(ctx, opts)
	if err != nil {
		s.logger.Error("Failed to list objects", "path", path, "error", err)
		return nil, err
	}
	return list, nil
}

// Stat fetches an object's metadata.
func (s *StorageService) Stat(ctx context.Context, target Target, remotePath string) (*storage.Metadata, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting Stat operation", "path", remotePath)

	md, err := svc.RefAt(remotePath).Metadata(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch metadata", "path", remotePath, "error", err)
		return nil, err
	}
	return md, nil
}

// SetMetadata applies the writable fields of md to an object and returns
// the server's updated view.
func (s *StorageService) SetMetadata(ctx context.Context, target Target, remotePath string, md *storage.Metadata) (*storage.Metadata, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting SetMetadata operation", "path", remotePath)

	updated, err := svc.RefAt(remotePath).UpdateMetadata(ctx, md)
	if err != nil {
		s.logger.Error("Failed to update metadata", "path", remotePath, "error", err)
		return nil, err
	}
	return updated, nil
}

// DownloadURL returns a URL from which the object can be fetched directly.
func (s *StorageService) DownloadURL(ctx context.Context, target Target, remotePath string) (string, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return "", err
	}
	defer boundary.Close()

	s.logger.Debug("Starting DownloadURL operation", "path", remotePath)

	url, err := svc.RefAt(remotePath).DownloadURL(ctx)
	if err != nil {
		s.logger.Error("Failed to resolve download URL", "path", remotePath, "error", err)
		return "", err
	}
	return url, nil
}

// Remove deletes an object.
func (s *StorageService) Remove(ctx context.Context, target Target, remotePath string) error {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return err
	}
	defer boundary.Close()

	s.logger.Debug("Starting Remove operation", "path", remotePath)

	if err := svc.RefAt(remotePath).Delete(ctx); err != nil {
		s.logger.Error("Failed to delete object", "path", remotePath, "error", err)
		return err
	}
	return nil
}

// --- Retry and Usage Operations ---

// RetryTime reads the stored retry window for one operation kind.
func (s *StorageService) RetryTime(ctx context.Context, target Target, kind storage.RetryKind) (time.Duration, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return 0, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting RetryTime operation", "kind", kind)

	switch kind {
	case storage.RetryDownload:
		return svc.MaxDownloadRetryTime(ctx)
	case storage.RetryUpload:
		return svc.MaxUploadRetryTime(ctx)
	case storage.RetryOperation:
		return svc.MaxOperationRetryTime(ctx)
	default:
		return 0, fmt.Errorf("unknown retry kind: %s", kind)
	}
}

// SetRetryTime stores the retry window for one operation kind.
func (s *StorageService) SetRetryTime(ctx context.Context, target Target, kind storage.RetryKind, d time.Duration) error {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return err
	}
	defer boundary.Close()

	s.logger.Debug("Starting SetRetryTime operation", "kind", kind, "duration", d)

	switch kind {
	case storage.RetryDownload:
		return svc.SetMaxDownloadRetryTime(ctx, d)
	case storage.RetryUpload:
		return svc.SetMaxUploadRetryTime(ctx, d)
	case storage.RetryOperation:
		return svc.SetMaxOperationRetryTime(ctx, d)
	default:
		return fmt.Errorf("unknown retry kind: %s", kind)
	}
}

// Usage reports total stored bytes and object count for the target bucket.
func (s *StorageService) Usage(ctx context.Context, target Target) (*storage.BucketUsageOutput, error) {
	svc, boundary, err := s.open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer boundary.Close()

	s.logger.Debug("Starting Usage operation")

	usage, err := svc.BucketUsage(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch bucket usage", "error", err)
		return nil, err
	}
	return usage, nil
}
