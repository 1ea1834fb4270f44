package storagetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cumulus/pkg/storage"
)

// RunListTests executes the hierarchical listing tests.
func (suite *BoundarySuite) RunListTests(t *testing.T) {
	t.Run("List_Directory", suite.testListDirectory)
	t.Run("List_Paging", suite.testListPaging)
	t.Run("List_Empty", suite.testListEmpty)
}

// RunRetryTests executes the retry window tests.
func (suite *BoundarySuite) RunRetryTests(t *testing.T) {
	t.Run("Retry_Defaults", suite.testRetryDefaults)
	t.Run("Retry_SetAndGet", suite.testRetrySetAndGet)
	t.Run("Retry_NegativeRejected", suite.testRetryNegativeRejected)
}

// RunUsageTests executes the bucket usage tests.
func (suite *BoundarySuite) RunUsageTests(t *testing.T) {
	t.Run("Usage_Counts", suite.testUsageCounts)
}

func (suite *BoundarySuite) testListDirectory(t *testing.T) {
	svc := suite.newService(t)
	mustPut(t, svc.RefAt("docs/a.txt"), []byte("a"), nil)
	mustPut(t, svc.RefAt("docs/b.txt"), []byte("b"), nil)
	mustPut(t, svc.RefAt("docs/sub/c.txt"), []byte("c"), nil)
	mustPut(t, svc.RefAt("root.txt"), []byte("r"), nil)

	docs := mustList(t, svc.RefAt("docs"), storage.ListOptions{})
	assert.ElementsMatch(t, []string{"docs/a.txt", "docs/b.txt"}, itemPaths(docs))
	assert.Equal(t, []string{"docs/sub/"}, docs.Prefixes)
	assert.Empty(t, docs.NextPageToken)

	root := mustList(t, svc.Ref(), storage.ListOptions{})
	assert.ElementsMatch(t, []string{"root.txt"}, itemPaths(root))
	assert.Equal(t, []string{"docs/"}, root.Prefixes)
}

func (suite *BoundarySuite) testListPaging(t *testing.T) {
	svc := suite.newService(t)
	want := []string{"pages/00.txt", "pages/01.txt", "pages/02.txt", "pages/03.txt", "pages/04.txt"}
	for _, p := range want {
		mustPut(t, svc.RefAt(p), []byte(p), nil)
	}

	var got []string
	opts := storage.ListOptions{MaxResults: 2}
	pages := 0
	for {
		page := mustList(t, svc.RefAt("pages"), opts)
		assert.LessOrEqual(t, len(page.Items), 2, "a page must respect MaxResults")
		got = append(got, itemPaths(page)...)
		pages++
		if page.NextPageToken == "" {
			break
		}
		opts.PageToken = page.NextPageToken
	}

	assert.Equal(t, want, got, "paging should visit every object exactly once, in order")
	assert.Equal(t, 3, pages)
}

func (suite *BoundarySuite) testListEmpty(t *testing.T) {
	svc := suite.newService(t)
	list := mustList(t, svc.RefAt("nothing/here"), storage.ListOptions{})
	assert.Empty(t, list.Items)
	assert.Empty(t, list.Prefixes)
	assert.Empty(t, list.NextPageToken)
}

func (suite *BoundarySuite) testRetryDefaults(t *testing.T) {
	svc := suite.newService(t)

	download, err := svc.MaxDownloadRetryTime(testContext())
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultDownloadRetryTime, download)

	upload, err := svc.MaxUploadRetryTime(testContext())
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultUploadRetryTime, upload)

	operation, err := svc.MaxOperationRetryTime(testContext())
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultOperationRetryTime, operation)
}

func (suite *BoundarySuite) testRetrySetAndGet(t *testing.T) {
	svc := suite.newService(t)

	require.NoError(t, svc.SetMaxUploadRetryTime(testContext(), 90*time.Second))

	upload, err := svc.MaxUploadRetryTime(testContext())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, upload)

	download, err := svc.MaxDownloadRetryTime(testContext())
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultDownloadRetryTime, download, "setting one kind must not disturb the others")
}

func (suite *BoundarySuite) testRetryNegativeRejected(t *testing.T) {
	svc := suite.newService(t)
	err := svc.SetMaxDownloadRetryTime(testContext(), -time.Second)
	require.Error(t, err, "negative retry windows must be rejected")
}

func (suite *BoundarySuite) testUsageCounts(t *testing.T) {
	svc := suite.newService(t)

	usage, err := svc.BucketUsage(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.TotalBytes)
	assert.Equal(t, int64(0), usage.ObjectCount)

	mustPut(t, svc.RefAt("u/one.bin"), []byte("abc"), nil)
	mustPut(t, svc.RefAt("u/two.bin"), []byte("01234"), nil)

	usage, err = svc.BucketUsage(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(8), usage.TotalBytes)
	assert.Equal(t, int64(2), usage.ObjectCount)

	require.NoError(t, svc.RefAt("u/one.bin").Delete(testContext()))

	usage, err = svc.BucketUsage(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.TotalBytes)
	assert.Equal(t, int64(1), usage.ObjectCount)
}
