package gcs

import (
	"context"
	"testing"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	monitoringpb "cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cumulus/pkg/storage"
)

func TestMapObjectAttributes(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	attrs := mapObjectAttributes(&gcsstorage.ObjectAttrs{
		Bucket:         "b",
		Name:           "docs/report.pdf",
		Generation:     7,
		Metageneration: 2,
		Size:           2048,
		MD5:            []byte{0xde, 0xad, 0xbe, 0xef},
		Created:        created,
		Updated:        created.Add(time.Minute),
		ContentType:    "application/pdf",
		CacheControl:   "max-age=3600",
		Metadata:       map[string]string{"owner": "ops"},
	})

	assert.Equal(t, "b", attrs.Bucket)
	assert.Equal(t, "docs/report.pdf", attrs.Path)
	assert.Equal(t, "report.pdf", attrs.Name, "the display name is the final path segment")
	assert.Equal(t, int64(7), attrs.Generation)
	assert.Equal(t, int64(2), attrs.Metageneration)
	assert.Equal(t, int64(2048), attrs.Size)
	assert.Equal(t, "3q2+7w==", attrs.MD5Hash)
	assert.Equal(t, created, attrs.Created)
	assert.Equal(t, "application/pdf", attrs.ContentType)
	assert.Equal(t, "max-age=3600", attrs.CacheControl)
	assert.Equal(t, map[string]string{"owner": "ops"}, attrs.CustomMetadata)
}

func TestMapObjectAttributesNil(t *testing.T) {
	assert.Equal(t, storage.ObjectAttrs{}, mapObjectAttributes(nil))
}

func TestFormatMD5(t *testing.T) {
	assert.Equal(t, "", formatMD5(nil))
	assert.Equal(t, "", formatMD5([]byte{}))
	assert.Equal(t, "AQID", formatMD5([]byte{1, 2, 3}))
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "c", lastSegment("a/b/c"))
	assert.Equal(t, "a", lastSegment("a"))
	assert.Equal(t, "", lastSegment("a/"))
	assert.Equal(t, "", lastSegment(""))
}

func TestExtractUsageValue(t *testing.T) {
	assert.Equal(t, int64(0), extractUsageValue(nil))
	assert.Equal(t, int64(5), extractUsageValue(&monitoringpb.TypedValue{
		Value: &monitoringpb.TypedValue_Int64Value{Int64Value: 5},
	}))
	assert.Equal(t, int64(3), extractUsageValue(&monitoringpb.TypedValue{
		Value: &monitoringpb.TypedValue_DoubleValue{DoubleValue: 2.6},
	}), "double values round to the nearest integer")
	assert.Equal(t, int64(0), extractUsageValue(&monitoringpb.TypedValue{
		Value: &monitoringpb.TypedValue_StringValue{StringValue: "n/a"},
	}))
}

func TestRetryWindowBookkeeping(t *testing.T) {
	g := &Boundary{
		opts:    Options{App: "app", Bucket: "ambient"},
		retries: make(map[scopeKey]map[storage.RetryKind]int64),
	}
	ctx := context.Background()

	out, err := g.GetRetryTime(ctx, &storage.GetRetryTimeInput{Kind: storage.RetryDownload})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultDownloadRetryTime.Milliseconds(), out.Millis)

	_, err = g.SetRetryTime(ctx, &storage.SetRetryTimeInput{Kind: storage.RetryDownload, Millis: 1234})
	require.NoError(t, err)

	out, err = g.GetRetryTime(ctx, &storage.GetRetryTimeInput{Kind: storage.RetryDownload})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), out.Millis)

	// Another bucket keeps its own windows.
	out, err = g.GetRetryTime(ctx, &storage.GetRetryTimeInput{
		Scope: storage.Scope{Bucket: "other"},
		Kind:  storage.RetryDownload,
	})
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultDownloadRetryTime.Milliseconds(), out.Millis)
}
