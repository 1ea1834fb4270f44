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

// RunObjectTests executes the object content tests.
func (suite *BoundarySuite) RunObjectTests(t *testing.T) {
	t.Run("PutData_RoundTrip", suite.testPutDataRoundTrip)
	t.Run("PutData_Overwrite", suite.testPutDataOverwrite)
	t.Run("PutFile_RoundTrip", suite.testPutFileRoundTrip)
	t.Run("WriteToFile_RoundTrip", suite.testWriteToFileRoundTrip)
	t.Run("Data_SizeLimit", suite.testDataSizeLimit)
	t.Run("Data_NotFound", suite.testDataNotFound)
	t.Run("WriteToFile_NotFound", suite.testWriteToFileNotFound)
	t.Run("DownloadURL_RoundTrip", suite.testDownloadURL)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
}

// RunMetadataTests executes the metadata tests.
func (suite *BoundarySuite) RunMetadataTests(t *testing.T) {
	t.Run("Metadata_AfterPut", suite.testMetadataAfterPut)
	t.Run("Metadata_NotFound", suite.testMetadataNotFound)
	t.Run("Update_SetField", suite.testUpdateSetField)
	t.Run("Update_ClearField", suite.testUpdateClearField)
	t.Run("Update_UntouchedFieldSurvives", suite.testUpdateUntouchedFieldSurvives)
	t.Run("Update_CustomMetadata", suite.testUpdateCustomMetadata)
	t.Run("Update_NotFound", suite.testUpdateNotFound)
}

func (suite *BoundarySuite) testPutDataRoundTrip(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/hello.txt")
	payload := []byte("Hello, World!")

	snapshot := mustPut(t, ref, payload, nil)
	assert.NotEmpty(t, snapshot.DownloadURL, "a completed upload should expose a URL")
	assertData(t, ref, payload)
}

func (suite *BoundarySuite) testPutDataOverwrite(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/overwrite.txt")

	mustPut(t, ref, []byte("old data"), nil)
	mustPut(t, ref, []byte("new data that is longer"), nil)
	assertData(t, ref, []byte("new data that is longer"))
}

func (suite *BoundarySuite) testPutFileRoundTrip(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/from-file.txt")
	payload := []byte("content travelling through a local file")
	src := writeTempFile(t, "src.txt", payload)

	task := ref.PutFile(testContext(), src, nil)
	_, err := task.Await(testContext())
	require.NoError(t, err, "PutFile should succeed")
	assertData(t, ref, payload)
}

func (suite *BoundarySuite) testWriteToFileRoundTrip(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/to-file.txt")
	payload := []byte("bytes headed for disk")
	mustPut(t, ref, payload, nil)

	dest := filepath.Join(t.TempDir(), "dest.txt")
	task := ref.WriteToFile(testContext(), dest)
	snapshot, err := task.Await(testContext())
	require.NoError(t, err, "WriteToFile should succeed")
	assert.Equal(t, int64(len(payload)), snapshot.TotalBytes)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, written)
}

func (suite *BoundarySuite) testDataSizeLimit(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/large.bin")
	mustPut(t, ref, []byte("0123456789"), nil)

	_, err := ref.Data(testContext(), 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrSizeLimitExceeded), "expected ErrSizeLimitExceeded, got %v", err)

	data, err := ref.Data(testContext(), 10)
	require.NoError(t, err, "an object exactly at the limit should be returned")
	assert.Len(t, data, 10)
}

func (suite *BoundarySuite) testDataNotFound(t *testing.T) {
	svc := suite.newService(t)
	_, err := svc.RefAt("missing/object.txt").Data(testContext(), 0)
	assertNotFound(t, err)
}

func (suite *BoundarySuite) testWriteToFileNotFound(t *testing.T) {
	svc := suite.newService(t)
	dest := filepath.Join(t.TempDir(), "never-written.txt")

	task := svc.RefAt("missing/object.txt").WriteToFile(testContext(), dest)
	_, err := task.Await(testContext())
	assertNotFound(t, err)
}

func (suite *BoundarySuite) testDownloadURL(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/linked.txt")
	mustPut(t, ref, []byte("addressable"), nil)

	url, err := ref.DownloadURL(testContext())
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	_, err = svc.RefAt("missing/linked.txt").DownloadURL(testContext())
	assertNotFound(t, err)
}

func (suite *BoundarySuite) testDeleteSuccess(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/doomed.txt")
	mustPut(t, ref, []byte("short-lived"), nil)

	require.NoError(t, ref.Delete(testContext()))
	_, err := ref.Data(testContext(), 0)
	assertNotFound(t, err)
}

func (suite *BoundarySuite) testDeleteNotFound(t *testing.T) {
	svc := suite.newService(t)
	err := svc.RefAt("missing/doomed.txt").Delete(testContext())
	assertNotFound(t, err)
}

func (suite *BoundarySuite) testMetadataAfterPut(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/described.txt")
	payload := []byte("described content")

	md := storage.NewMetadata()
	md.ContentType = storage.String("text/plain")
	mustPut(t, ref, payload, md)

	got := mustMetadata(t, ref)
	assert.Equal(t, "suite", got.Bucket)
	assert.Equal(t, "docs/described.txt", got.Path)
	assert.Equal(t, "described.txt", got.Name)
	assert.Equal(t, int64(len(payload)), got.Size)
	assert.NotEmpty(t, got.MD5Hash)
	assert.GreaterOrEqual(t, got.Generation, int64(1))
	assert.False(t, got.Created.IsZero(), "Created should be stamped")
	assert.False(t, got.Updated.IsZero(), "Updated should be stamped")
	require.NotNil(t, got.ContentType)
	assert.Equal(t, "text/plain", *got.ContentType)
}

func (suite *BoundarySuite) testMetadataNotFound(t *testing.T) {
	svc := suite.newService(t)
	_, err := svc.RefAt("missing/described.txt").Metadata(testContext())
	assertNotFound(t, err)
}

func (suite *BoundarySuite) testUpdateSetField(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/tuned.txt")
	mustPut(t, ref, []byte("tuned"), nil)

	before := mustMetadata(t, ref)

	update := storage.NewMetadata()
	update.CacheControl = storage.String("max-age=60")
	after, err := ref.UpdateMetadata(testContext(), update)
	require.NoError(t, err)

	require.NotNil(t, after.CacheControl)
	assert.Equal(t, "max-age=60", *after.CacheControl)
	assert.Greater(t, after.Metageneration, before.Metageneration, "an update should advance the metageneration")
}

func (suite *BoundarySuite) testUpdateClearField(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/cleared.txt")

	md := storage.NewMetadata()
	md.ContentLanguage = storage.String("en")
	mustPut(t, ref, []byte("cleared"), md)

	update := storage.NewMetadata()
	update.ContentLanguage = storage.String("")
	after, err := ref.UpdateMetadata(testContext(), update)
	require.NoError(t, err)
	assert.Nil(t, after.ContentLanguage, "an empty string should delete the stored value")
}

func (suite *BoundarySuite) testUpdateUntouchedFieldSurvives(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/sticky.txt")

	md := storage.NewMetadata()
	md.ContentType = storage.String("application/json")
	mustPut(t, ref, []byte("{}"), md)

	update := storage.NewMetadata()
	update.ContentEncoding = storage.String("gzip")
	after, err := ref.UpdateMetadata(testContext(), update)
	require.NoError(t, err)

	require.NotNil(t, after.ContentType, "a nil field must leave the stored value alone")
	assert.Equal(t, "application/json", *after.ContentType)
	require.NotNil(t, after.ContentEncoding)
	assert.Equal(t, "gzip", *after.ContentEncoding)
}

func (suite *BoundarySuite) testUpdateCustomMetadata(t *testing.T) {
	svc := suite.newService(t)
	ref := svc.RefAt("docs/tagged.txt")
	mustPut(t, ref, []byte("tagged"), nil)

	update := storage.NewMetadata()
	update.CustomMetadata = map[string]string{"owner": "ops", "tier": "gold"}
	after, err := ref.UpdateMetadata(testContext(), update)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner": "ops", "tier": "gold"}, after.CustomMetadata)

	replace := storage.NewMetadata()
	replace.CustomMetadata = map[string]string{"owner": "dev"}
	after, err = ref.UpdateMetadata(testContext(), replace)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner": "dev"}, after.CustomMetadata, "a non-nil map should replace the stored map wholesale")
}

func (suite *BoundarySuite) testUpdateNotFound(t *testing.T) {
	svc := suite.newService(t)
	update := storage.NewMetadata()
	update.ContentType = storage.String("text/plain")
	_, err := svc.RefAt("missing/tagged.txt").UpdateMetadata(testContext(), update)
	assertNotFound(t, err)
}
