package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cumulus/internal/config"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

// fakeBoundary satisfies storage.Boundary with inert responses so factory
// tests can hand out a live value without a real backend.
type fakeBoundary struct{}

var _ storage.Boundary = (*fakeBoundary)(nil)

func (f *fakeBoundary) GetRetryTime(context.Context, *storage.GetRetryTimeInput) (*storage.GetRetryTimeOutput, error) {
	return &storage.GetRetryTimeOutput{}, nil
}

func (f *fakeBoundary) SetRetryTime(context.Context, *storage.SetRetryTimeInput) (*storage.SetRetryTimeOutput, error) {
	return &storage.SetRetryTimeOutput{}, nil
}

func (f *fakeBoundary) ResolveBucket(context.Context, *storage.ResolveBucketInput) (*storage.ResolveBucketOutput, error) {
	return &storage.ResolveBucketOutput{}, nil
}

func (f *fakeBoundary) ResolvePath(context.Context, *storage.ResolvePathInput) (*storage.ResolvePathOutput, error) {
	return &storage.ResolvePathOutput{}, nil
}

func (f *fakeBoundary) ResolveName(context.Context, *storage.ResolveNameInput) (*storage.ResolveNameOutput, error) {
	return &storage.ResolveNameOutput{}, nil
}

func (f *fakeBoundary) GetData(context.Context, *storage.GetDataInput) (*storage.GetDataOutput, error) {
	return &storage.GetDataOutput{}, nil
}

func (f *fakeBoundary) WriteToFile(context.Context, *storage.WriteToFileInput) (*storage.WriteToFileOutput, error) {
	return &storage.WriteToFileOutput{}, nil
}

func (f *fakeBoundary) PutFile(context.Context, *storage.PutFileInput) (*storage.PutObjectOutput, error) {
	return &storage.PutObjectOutput{}, nil
}

func (f *fakeBoundary) PutData(context.Context, *storage.PutDataInput) (*storage.PutObjectOutput, error) {
	return &storage.PutObjectOutput{}, nil
}

func (f *fakeBoundary) GetDownloadURL(context.Context, *storage.GetDownloadURLInput) (*storage.GetDownloadURLOutput, error) {
	return &storage.GetDownloadURLOutput{}, nil
}

func (f *fakeBoundary) Delete(context.Context, *storage.DeleteInput) (*storage.DeleteOutput, error) {
	return &storage.DeleteOutput{}, nil
}

func (f *fakeBoundary) GetMetadata(context.Context, *storage.GetMetadataInput) (*storage.GetMetadataOutput, error) {
	return &storage.GetMetadataOutput{}, nil
}

func (f *fakeBoundary) UpdateMetadata(context.Context, *storage.UpdateMetadataInput) (*storage.UpdateMetadataOutput, error) {
	return &storage.UpdateMetadataOutput{}, nil
}

func (f *fakeBoundary) ListObjects(context.Context, *storage.ListObjectsInput) (*storage.ListObjectsOutput, error) {
	return &storage.ListObjectsOutput{}, nil
}

func (f *fakeBoundary) BucketUsage(context.Context, *storage.BucketUsageInput) (*storage.BucketUsageOutput, error) {
	return &storage.BucketUsageOutput{}, nil
}

func (f *fakeBoundary) Close() error { return nil }

func newTestFactory(cfg *config.Config) *Factory {
	return NewFactory(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetBoundaryUnsupportedProvider(t *testing.T) {
	f := newTestFactory(&config.Config{})

	_, err := f.GetBoundary(context.Background(), "tape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider: tape")
	assert.Contains(t, err.Error(), "Supported providers are:")
}

func TestGetBoundaryUnconfiguredProvider(t *testing.T) {
	Register(common.Provider("fct-unconfigured"), Registration{
		ConfigCheck: rejectAll,
		Initializer: initNil,
	})
	f := newTestFactory(&config.Config{})

	_, err := f.GetBoundary(context.Background(), "FCT-Unconfigured")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider 'fct-unconfigured' is not configured")
	assert.Contains(t, err.Error(), "config set")
}

func TestGetBoundarySuccess(t *testing.T) {
	Register(common.Provider("fct-live"), Registration{
		ConfigCheck: acceptAll,
		Initializer: initNil,
	})
	f := newTestFactory(&config.Config{})

	boundary, err := f.GetBoundary(context.Background(), "fct-live")
	require.NoError(t, err)
	require.NotNil(t, boundary)
	assert.NoError(t, boundary.Close())
}

func TestGetBoundaryWrapsInitializerError(t *testing.T) {
	boom := errors.New("credentials expired")
	Register(common.Provider("fct-broken"), Registration{
		ConfigCheck: acceptAll,
		Initializer: func(context.Context, *config.Config, *slog.Logger) (storage.Boundary, error) {
			return nil, boom
		},
	})
	f := newTestFactory(&config.Config{})

	_, err := f.GetBoundary(context.Background(), "fct-broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to initialize provider fct-broken")
}

func TestGetConfiguredProviders(t *testing.T) {
	Register(common.Provider("fct-cfg-yes"), Registration{
		ConfigCheck: func(cfg *config.Config) bool { return cfg.AppID != "" },
		Initializer: initNil,
	})
	Register(common.Provider("fct-cfg-no"), Registration{
		ConfigCheck: rejectAll,
		Initializer: initNil,
	})
	f := newTestFactory(&config.Config{AppID: "cumulus-test"})

	configured := f.GetConfiguredProviders()
	assert.Contains(t, configured, "fct-cfg-yes")
	assert.NotContains(t, configured, "fct-cfg-no")

	assert.True(t, f.IsConfigured("fct-cfg-yes"))
	assert.False(t, f.IsConfigured("fct-cfg-no"))
	assert.False(t, f.IsConfigured("never-registered"))
}
