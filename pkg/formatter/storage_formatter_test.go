package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cumulus/pkg/storage"
	"cumulus/pkg/storage/memory"
)

func listRefs(paths ...string) []*storage.Reference {
	svc := storage.NewService(memory.New(memory.Options{}), storage.ServiceOptions{
		App:    "fmt-test",
		Bucket: "b",
	})
	refs := make([]*storage.Reference, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, svc.RefAt(p))
	}
	return refs
}

func TestFormatObjectList(t *testing.T) {
	f := NewStorageFormatter()
	out := f.FormatObjectList(&storage.ObjectList{
		Items:         listRefs("docs/a.txt", "docs/b.txt"),
		Prefixes:      []string{"docs/sub/"},
		NextPageToken: "tok123",
	})

	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, "PREFIX")
	assert.Contains(t, out, "docs/sub/")
	assert.Contains(t, out, "OBJECT")
	assert.Contains(t, out, "docs/a.txt")
	assert.Contains(t, out, "Next page token: tok123")

	// Prefixes render before objects.
	assert.Less(t, strings.Index(out, "docs/sub/"), strings.Index(out, "docs/a.txt"))
}

func TestFormatObjectListLastPage(t *testing.T) {
	f := NewStorageFormatter()
	out := f.FormatObjectList(&storage.ObjectList{Items: listRefs("a.txt")})
	assert.NotContains(t, out, "Next page token")
}

func TestFormatObjectDetails(t *testing.T) {
	updated := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	md := &storage.Metadata{
		Bucket:         "b",
		Path:           "docs/a.txt",
		Name:           "a.txt",
		Size:           1536 * 1024,
		Generation:     3,
		Metageneration: 2,
		MD5Hash:        "abc123==",
		Updated:        updated,
		ContentType:    storage.String("text/plain"),
		CustomMetadata: map[string]string{"zeta": "2", "alpha": "1"},
	}

	f := NewStorageFormatter()
	out := f.FormatObjectDetails(md)

	assert.Contains(t, out, "Object: docs/a.txt")
	assert.Contains(t, out, "Overview")
	assert.Contains(t, out, "1.5 MB")
	assert.Contains(t, out, "abc123==")
	assert.Contains(t, out, "N/A", "a zero Created time renders as N/A")
	assert.Contains(t, out, updated.Format(time.RFC1123))

	assert.Contains(t, out, "Attributes")
	assert.Contains(t, out, "Content-Type")
	assert.Contains(t, out, "text/plain")

	assert.Contains(t, out, "Custom Metadata")
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "zeta"), "custom metadata keys are sorted")
}

func TestFormatObjectDetailsOmitsEmptySections(t *testing.T) {
	f := NewStorageFormatter()
	out := f.FormatObjectDetails(&storage.Metadata{Path: "x", Name: "x"})

	assert.Contains(t, out, "Overview")
	assert.NotContains(t, out, "Attributes")
	assert.NotContains(t, out, "Custom Metadata")
}

func TestFormatUsage(t *testing.T) {
	f := NewStorageFormatter()

	out := f.FormatUsage("memory", "", &storage.BucketUsageOutput{TotalBytes: 2048, ObjectCount: 5})
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "5")

	out = f.FormatUsage("gcs", "archive", &storage.BucketUsageOutput{TotalBytes: -1, ObjectCount: -1})
	assert.Contains(t, out, "archive")
	assert.Contains(t, out, "N/A")
}

func TestTableAlignsColumns(t *testing.T) {
	table := NewTable("TYPE", "PATH")
	table.AddRow("OBJECT", "docs/a.txt")
	table.AddRow("PREFIX", "docs/")

	out := table.String()
	assert.Contains(t, out, "+--------+------------+")
	assert.Contains(t, out, "| TYPE   | PATH       |")
	assert.Contains(t, out, "| OBJECT | docs/a.txt |")
	assert.Contains(t, out, "| PREFIX | docs/      |")
}
