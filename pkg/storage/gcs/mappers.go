package gcs

import (
	"encoding/base64"
	"strings"

	gcsstorage "cloud.google.com/go/storage"

	"cumulus/pkg/storage"
)

// Maps GCS SDK object attributes to the provider-neutral attribute form
func mapObjectAttributes(attrs *gcsstorage.ObjectAttrs) storage.ObjectAttrs {
	if attrs == nil {
		return storage.ObjectAttrs{}
	}
	return storage.ObjectAttrs{
		Bucket:             attrs.Bucket,
		Generation:         attrs.Generation,
		Metageneration:     attrs.Metageneration,
		Path:               attrs.Name,
		Name:               lastSegment(attrs.Name),
		Size:               attrs.Size,
		MD5Hash:            formatMD5(attrs.MD5),
		Created:            attrs.Created,
		Updated:            attrs.Updated,
		CacheControl:       attrs.CacheControl,
		ContentDisposition: attrs.ContentDisposition,
		ContentEncoding:    attrs.ContentEncoding,
		ContentLanguage:    attrs.ContentLanguage,
		ContentType:        attrs.ContentType,
		CustomMetadata:     attrs.Metadata,
	}
}

// Converts the binary MD5 hash provided by the GCS SDK into a standard
// Base64 encoded string
func formatMD5(hash []byte) string {
	if len(hash) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(hash)
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
