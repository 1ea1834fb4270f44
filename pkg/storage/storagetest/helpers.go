package storagetest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cumulus/pkg/storage"
)

// mustPut uploads data to the reference and fails the test if the task errors.
func mustPut(t *testing.T, ref *storage.Reference, data []byte, md *storage.Metadata) *storage.UploadSnapshot {
	t.Helper()
	task := ref.PutData(testContext(), data, md)
	snapshot, err := task.Await(testContext())
	require.NoError(t, err, "PutData should succeed")
	require.NotNil(t, snapshot, "a successful upload should carry a snapshot")
	return snapshot
}

// mustData reads the whole object and fails the test if it errors.
func mustData(t *testing.T, ref *storage.Reference) []byte {
	t.Helper()
	data, err := ref.Data(testContext(), 0)
	require.NoError(t, err, "Data should succeed")
	return data
}

// mustMetadata fetches object metadata and fails the test if it errors.
func mustMetadata(t *testing.T, ref *storage.Reference) *storage.Metadata {
	t.Helper()
	md, err := ref.Metadata(testContext())
	require.NoError(t, err, "Metadata should succeed")
	require.NotNil(t, md)
	return md
}

// mustList fetches one listing page and fails the test if it errors.
func mustList(t *testing.T, ref *storage.Reference, opts storage.ListOptions) *storage.ObjectList {
	t.Helper()
	list, err := ref.List(testContext(), opts)
	require.NoError(t, err, "List should succeed")
	require.NotNil(t, list)
	return list
}

// assertNotFound checks that the error wraps ErrObjectNotFound.
func assertNotFound(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}
}

// assertData checks that the stored object matches the expected bytes.
func assertData(t *testing.T, ref *storage.Reference, expected []byte) {
	t.Helper()
	assert.Equal(t, expected, mustData(t, ref), "Object data mismatch")
}

// itemPaths collects the paths of a listing page's items.
func itemPaths(list *storage.ObjectList) []string {
	paths := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		paths = append(paths, item.Path())
	}
	return paths
}

// writeTempFile puts data in a throwaway file and returns its path.
func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
