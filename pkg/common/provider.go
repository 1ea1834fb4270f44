package common

type Provider string

const (
	GCS    Provider = "gcs"
	S3     Provider = "s3"
	Local  Provider = "local"
	Memory Provider = "memory"
)

// All lists the providers a boundary can be constructed for, in display order.
func All() []Provider {
	return []Provider{GCS, S3, Local, Memory}
}

// Valid reports whether name is a known provider.
func Valid(name string) bool {
	switch Provider(name) {
	case GCS, S3, Local, Memory:
		return true
	}
	return false
}
