// Package gcs implements the storage boundary on Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gcsstorage "cloud.google.com/go/storage"

	"cumulus/internal/config"
	"cumulus/internal/provider"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

func init() {
	provider.Register(common.GCS, provider.Registration{
		ConfigCheck: isConfigured,
		Initializer: initialize,
	})
}

// Checks if the GCS configuration block is present and the project ID is set
func isConfigured(cfg *config.Config) bool {
	return cfg.GCS != nil && cfg.GCS.Project != ""
}

// Initializes the GCS boundary from the configuration
func initialize(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Boundary, error) {
	if !isConfigured(cfg) {
		return nil, fmt.Errorf("GCS configuration missing or incomplete")
	}
	return New(ctx, Options{
		Project: cfg.GCS.Project,
		Bucket:  cfg.GCS.Bucket,
		App:     cfg.AppID,
		Logger:  logger,
	})
}

// Options configures the GCS boundary.
type Options struct {
	// Project is the GCP project the buckets live in; required for usage
	// metrics.
	Project string
	// Bucket is the bucket an empty request scope resolves to.
	Bucket string
	// App is the application identifier an empty request scope resolves to.
	App string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type scopeKey struct {
	app    string
	bucket string
}

// Boundary is a Google Cloud Storage boundary.
type Boundary struct {
	client *gcsstorage.Client
	opts   Options
	logger *slog.Logger

	// GCS offers no server-side home for client retry preferences, so the
	// boundary keeps them for the process lifetime.
	mu      sync.RWMutex
	retries map[scopeKey]map[storage.RetryKind]int64
}

var _ storage.Boundary = (*Boundary)(nil)

// New creates the GCS client using ambient credentials.
func New(ctx context.Context, opts Options) (*Boundary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Boundary{
		client:  client,
		opts:    opts,
		logger:  logger.With("provider", "gcs"),
		retries: make(map[scopeKey]map[storage.RetryKind]int64),
	}, nil
}

func (g *Boundary) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Boundary) bucketFor(s storage.Scope) string {
	if s.Bucket != "" {
		return s.Bucket
	}
	return g.opts.Bucket
}

func (g *Boundary) appFor(s storage.Scope) string {
	if s.App != "" {
		return s.App
	}
	return g.opts.App
}

func (g *Boundary) GetRetryTime(ctx context.Context, in *storage.GetRetryTimeInput) (*storage.GetRetryTimeOutput, error) {
	return &storage.GetRetryTimeOutput{Millis: g.retryMillis(in.Scope, in.Kind)}, nil
}

func (g *Boundary) SetRetryTime(ctx context.Context, in *storage.SetRetryTimeInput) (*storage.SetRetryTimeOutput, error) {
	key := scopeKey{app: g.appFor(in.Scope), bucket: g.bucketFor(in.Scope)}
	g.mu.Lock()
	defer g.mu.Unlock()
	kinds, ok := g.retries[key]
	if !ok {
		kinds = make(map[storage.RetryKind]int64)
		g.retries[key] = kinds
	}
	kinds[in.Kind] = in.Millis
	return &storage.SetRetryTimeOutput{}, nil
}

func (g *Boundary) retryMillis(scope storage.Scope, kind storage.RetryKind) int64 {
	key := scopeKey{app: g.appFor(scope), bucket: g.bucketFor(scope)}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if kinds, ok := g.retries[key]; ok {
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
// the SDK's built-in retrying stops once the window is spent.
func (g *Boundary) withRetryWindow(ctx context.Context, scope storage.Scope, kind storage.RetryKind) (context.Context, context.CancelFunc) {
	millis := g.retryMillis(scope, kind)
	if millis <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(millis)*time.Millisecond)
}
