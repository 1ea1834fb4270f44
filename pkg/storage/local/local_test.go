package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cumulus/pkg/storage"
	"cumulus/pkg/storage/storagetest"
)

func openTestBoundary(t *testing.T, dir string) *Boundary {
	t.Helper()
	b, err := Open(Options{Path: dir, App: "storagetest", Bucket: "suite"})
	require.NoError(t, err, "opening badger store")
	return b
}

func TestBoundaryConformance(t *testing.T) {
	suite := &storagetest.BoundarySuite{
		NewBoundary: func(t *testing.T) storage.Boundary {
			return openTestBoundary(t, t.TempDir())
		},
	}
	suite.Run(t)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b := openTestBoundary(t, dir)
	_, err := b.PutData(ctx, &storage.PutDataInput{
		Path:     "kept/a.txt",
		Data:     []byte("durable"),
		Metadata: map[string]any{"contentType": "text/plain"},
	})
	require.NoError(t, err)
	_, err = b.SetRetryTime(ctx, &storage.SetRetryTimeInput{
		Kind:   storage.RetryUpload,
		Millis: (42 * time.Second).Milliseconds(),
	})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b = openTestBoundary(t, dir)
	defer b.Close()

	data, err := b.GetData(ctx, &storage.GetDataInput{Path: "kept/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), data.Data)

	md, err := b.GetMetadata(ctx, &storage.GetMetadataInput{Path: "kept/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", md.Metadata["contentType"])

	retry, err := b.GetRetryTime(ctx, &storage.GetRetryTimeInput{Kind: storage.RetryUpload})
	require.NoError(t, err)
	assert.Equal(t, (42 * time.Second).Milliseconds(), retry.Millis)
}

func TestDownloadURLNamesStoreLocation(t *testing.T) {
	dir := t.TempDir()
	b := openTestBoundary(t, dir)
	defer b.Close()
	ctx := context.Background()

	_, err := b.PutData(ctx, &storage.PutDataInput{Path: "x/y.bin", Data: []byte("z")})
	require.NoError(t, err)

	out, err := b.GetDownloadURL(ctx, &storage.GetDownloadURLInput{Path: "x/y.bin"})
	require.NoError(t, err)
	assert.Contains(t, out.URL, "file://")
	assert.Contains(t, out.URL, "suite/x/y.bin")
}
