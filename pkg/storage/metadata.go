package storage

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Wire keys for object metadata. Boundary implementations and the client
// agree on these names regardless of how the backing provider spells them.
const (
	metaKeyBucket             = "bucket"
	metaKeyGeneration         = "generation"
	metaKeyMetageneration     = "metadataGeneration"
	metaKeyPath               = "path"
	metaKeyName               = "name"
	metaKeySize               = "sizeBytes"
	metaKeyCreated            = "creationTimeMillis"
	metaKeyUpdated            = "updatedTimeMillis"
	metaKeyMD5Hash            = "md5Hash"
	metaKeyCacheControl       = "cacheControl"
	metaKeyContentDisposition = "contentDisposition"
	metaKeyContentEncoding    = "contentEncoding"
	metaKeyContentLanguage    = "contentLanguage"
	metaKeyContentType        = "contentType"
	metaKeyCustomMetadata     = "customMetadata"
)

// Metadata describes a stored object. The pointer-typed fields are writable
// by callers: nil leaves the field untouched on update, an empty string
// deletes the stored value, and any other string replaces it. The remaining
// fields are assigned by the server and ignored on update; on a Metadata the
// caller constructed they are simply zero.
type Metadata struct {
	CacheControl       *string
	ContentDisposition *string
	ContentEncoding    *string
	ContentLanguage    *string
	ContentType        *string
	CustomMetadata     map[string]string

	Bucket         string
	Generation     int64
	Metageneration int64
	Path           string
	Name           string
	Size           int64
	MD5Hash        string
	Created        time.Time
	Updated        time.Time
}

// NewMetadata returns an empty Metadata for callers building an update or an
// upload payload. Every server-assigned field starts at its zero value.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// String returns a pointer to s, for filling writable Metadata fields inline.
func String(s string) *string {
	return &s
}

// metadataWire is the decode target for the generic key-value metadata form.
type metadataWire struct {
	Bucket             string            `mapstructure:"bucket"`
	Generation         int64             `mapstructure:"generation"`
	Metageneration     int64             `mapstructure:"metadataGeneration"`
	Path               string            `mapstructure:"path"`
	Name               string            `mapstructure:"name"`
	Size               int64             `mapstructure:"sizeBytes"`
	Created            int64             `mapstructure:"creationTimeMillis"`
	Updated            int64             `mapstructure:"updatedTimeMillis"`
	MD5Hash            string            `mapstructure:"md5Hash"`
	CacheControl       *string           `mapstructure:"cacheControl"`
	ContentDisposition *string           `mapstructure:"contentDisposition"`
	ContentEncoding    *string           `mapstructure:"contentEncoding"`
	ContentLanguage    *string           `mapstructure:"contentLanguage"`
	ContentType        *string           `mapstructure:"contentType"`
	CustomMetadata     map[string]string `mapstructure:"customMetadata"`
}

// ParseMetadata builds a Metadata from the generic key-value form produced
// by a boundary. Missing keys leave their fields unset and unrecognized keys
// are ignored, so older clients keep working when the boundary grows fields.
func ParseMetadata(raw map[string]any) (*Metadata, error) {
	var wire metadataWire
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &wire,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building metadata decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding object metadata: %w", err)
	}

	md := &Metadata{
		CacheControl:       wire.CacheControl,
		ContentDisposition: wire.ContentDisposition,
		ContentEncoding:    wire.ContentEncoding,
		ContentLanguage:    wire.ContentLanguage,
		ContentType:        wire.ContentType,
		CustomMetadata:     wire.CustomMetadata,
		Bucket:             wire.Bucket,
		Generation:         wire.Generation,
		Metageneration:     wire.Metageneration,
		Path:               wire.Path,
		Name:               wire.Name,
		Size:               wire.Size,
		MD5Hash:            wire.MD5Hash,
	}
	if wire.Created != 0 {
		md.Created = time.UnixMilli(wire.Created).UTC()
	}
	if wire.Updated != 0 {
		md.Updated = time.UnixMilli(wire.Updated).UTC()
	}
	return md, nil
}

// settableMap renders exactly the writable fields in wire form. Unset fields
// are carried as nil so the boundary can tell "leave alone" from "delete".
// Custom metadata rides along only when the caller supplied a map.
func (m *Metadata) settableMap() map[string]any {
	if m == nil {
		return nil
	}
	out := map[string]any{
		metaKeyCacheControl:       stringOrNil(m.CacheControl),
		metaKeyContentDisposition: stringOrNil(m.ContentDisposition),
		metaKeyContentEncoding:    stringOrNil(m.ContentEncoding),
		metaKeyContentLanguage:    stringOrNil(m.ContentLanguage),
		metaKeyContentType:        stringOrNil(m.ContentType),
	}
	if m.CustomMetadata != nil {
		out[metaKeyCustomMetadata] = m.CustomMetadata
	}
	return out
}

func stringOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// ObjectAttrs is the provider-side view of a stored object, used by boundary
// implementations to report metadata in a uniform shape.
type ObjectAttrs struct {
	Bucket             string
	Generation         int64
	Metageneration     int64
	Path               string
	Name               string
	Size               int64
	MD5Hash            string
	Created            time.Time
	Updated            time.Time
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	ContentType        string
	CustomMetadata     map[string]string
}

// EncodeMetadata renders object attributes into the generic key-value form
// a boundary returns. Writable fields are included only when the provider
// has a value for them, so an absent field parses back as unset.
func EncodeMetadata(attrs ObjectAttrs) map[string]any {
	out := map[string]any{
		metaKeyBucket:         attrs.Bucket,
		metaKeyGeneration:     attrs.Generation,
		metaKeyMetageneration: attrs.Metageneration,
		metaKeyPath:           attrs.Path,
		metaKeyName:           attrs.Name,
		metaKeySize:           attrs.Size,
		metaKeyMD5Hash:        attrs.MD5Hash,
	}
	if !attrs.Created.IsZero() {
		out[metaKeyCreated] = attrs.Created.UnixMilli()
	}
	if !attrs.Updated.IsZero() {
		out[metaKeyUpdated] = attrs.Updated.UnixMilli()
	}
	if attrs.CacheControl != "" {
		out[metaKeyCacheControl] = attrs.CacheControl
	}
	if attrs.ContentDisposition != "" {
		out[metaKeyContentDisposition] = attrs.ContentDisposition
	}
	if attrs.ContentEncoding != "" {
		out[metaKeyContentEncoding] = attrs.ContentEncoding
	}
	if attrs.ContentLanguage != "" {
		out[metaKeyContentLanguage] = attrs.ContentLanguage
	}
	if attrs.ContentType != "" {
		out[metaKeyContentType] = attrs.ContentType
	}
	if len(attrs.CustomMetadata) > 0 {
		out[metaKeyCustomMetadata] = attrs.CustomMetadata
	}
	return out
}

// SettableAttrs is the boundary-side reading of an update payload. A nil
// field means the caller did not touch it; an empty string means the stored
// value should be deleted.
type SettableAttrs struct {
	CacheControl       *string           `mapstructure:"cacheControl"`
	ContentDisposition *string           `mapstructure:"contentDisposition"`
	ContentEncoding    *string           `mapstructure:"contentEncoding"`
	ContentLanguage    *string           `mapstructure:"contentLanguage"`
	ContentType        *string           `mapstructure:"contentType"`
	CustomMetadata     map[string]string `mapstructure:"customMetadata"`
}

// DecodeSettable interprets the writable portion of an update request.
// Boundary implementations use it so every provider applies the same
// nil / empty / value semantics.
func DecodeSettable(raw map[string]any) (*SettableAttrs, error) {
	var attrs SettableAttrs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &attrs,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building settable decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding settable metadata: %w", err)
	}
	return &attrs, nil
}

// Apply folds the update into attrs: nil fields are left alone, everything
// else (including empty strings) overwrites the stored value. A non-nil
// custom metadata map replaces the stored map wholesale.
func (s *SettableAttrs) Apply(attrs *ObjectAttrs) {
	if s == nil {
		return
	}
	if s.CacheControl != nil {
		attrs.CacheControl = *s.CacheControl
	}
	if s.ContentDisposition != nil {
		attrs.ContentDisposition = *s.ContentDisposition
	}
	if s.ContentEncoding != nil {
		attrs.ContentEncoding = *s.ContentEncoding
	}
	if s.ContentLanguage != nil {
		attrs.ContentLanguage = *s.ContentLanguage
	}
	if s.ContentType != nil {
		attrs.ContentType = *s.ContentType
	}
	if s.CustomMetadata != nil {
		attrs.CustomMetadata = s.CustomMetadata
	}
}
