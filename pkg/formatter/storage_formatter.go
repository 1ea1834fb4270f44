package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"cumulus/pkg/storage"
)

type StorageFormatter struct{}

func NewStorageFormatter() *StorageFormatter {
	return &StorageFormatter{}
}

// FormatObjectList renders one listing page: prefixes first, then objects,
// then the continuation token when the page is not the last one.
func (f *StorageFormatter) FormatObjectList(list *storage.ObjectList) string {
	table := NewTable("TYPE", "PATH")

	for _, prefix := range list.Prefixes {
		table.AddRow("PREFIX", prefix)
	}
	for _, item := range list.Items {
		table.AddRow("OBJECT", item.Path())
	}

	result := table.String()
	if list.NextPageToken != "" {
		result += fmt.Sprintf("\nNext page token: %s\n", list.NextPageToken)
	}
	return result
}

// FormatObjectDetails renders the stat view of a single object.
func (f *StorageFormatter) FormatObjectDetails(md *storage.Metadata) string {
	var result string

	result += FormatHeaderSection("Object: " + md.Path)
	result += "\n\n"

	result += FormatSectionTitle("Overview")
	result += "\n"

	overviewTable := NewTable("Parameter", "Value")

	details := []struct {
		Key   string
		Value string
	}{
		{"Bucket", md.Bucket},
		{"Path", md.Path},
		{"Name", md.Name},
		{"Size", storage.FormatBytes(md.Size)},
		{"Generation", strconv.FormatInt(md.Generation, 10)},
		{"Metageneration", strconv.FormatInt(md.Metageneration, 10)},
		{"MD5 Hash", md.MD5Hash},
		{"Created On", formatTime(md.Created)},
		{"Updated On", formatTime(md.Updated)},
	}

	for _, detail := range details {
		overviewTable.AddRow(detail.Key, detail.Value)
	}

	result += overviewTable.String()
	result += "\n\n"

	attributes := []struct {
		Key   string
		Value *string
	}{
		{"Content-Type", md.ContentType},
		{"Cache-Control", md.CacheControl},
		{"Content-Disposition", md.ContentDisposition},
		{"Content-Encoding", md.ContentEncoding},
		{"Content-Language", md.ContentLanguage},
	}

	attributesTable := NewTable("Attribute", "Value")
	hasAttributes := false
	for _, attribute := range attributes {
		if attribute.Value != nil && *attribute.Value != "" {
			attributesTable.AddRow(attribute.Key, *attribute.Value)
			hasAttributes = true
		}
	}
	if hasAttributes {
		result += FormatSectionTitle("Attributes")
		result += "\n"
		result += attributesTable.String()
		result += "\n\n"
	}

	if len(md.CustomMetadata) > 0 {
		result += FormatSectionTitle("Custom Metadata")
		result += "\n"
		customTable := NewTable("Key", "Value")

		keys := make([]string, 0, len(md.CustomMetadata))
		for k := range md.CustomMetadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			customTable.AddRow(k, md.CustomMetadata[k])
		}
		result += customTable.String()
		result += "\n\n"
	}

	return result
}

// FormatUsage renders the aggregate bucket usage line.
func (f *StorageFormatter) FormatUsage(provider, bucket string, usage *storage.BucketUsageOutput) string {
	if bucket == "" {
		bucket = "(default)"
	}

	table := NewTable("PROVIDER", "BUCKET", "USAGE", "OBJECTS")
	table.AddRow(provider, bucket, storage.FormatBytes(usage.TotalBytes), formatCount(usage.ObjectCount))
	return table.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format(time.RFC1123)
}

func formatCount(n int64) string {
	if n < 0 {
		return "N/A"
	}
	return strconv.FormatInt(n, 10)
}
