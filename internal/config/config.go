package config

// Config holds the persisted application configuration. Provider blocks are
// pointers so an absent block is distinguishable from an empty one; a
// provider counts as configured only when its block carries the fields its
// registration checks for.
type Config struct {
	// AppID is the application identifier sent with every boundary request.
	AppID string `mapstructure:"app_id"`

	// DefaultProvider is used when a command does not pass --provider.
	DefaultProvider string `mapstructure:"default_provider" validate:"omitempty,oneof=gcs s3 local memory"`

	GCS   *GCSConfig   `mapstructure:"gcs"`
	S3    *S3Config    `mapstructure:"s3"`
	Local *LocalConfig `mapstructure:"local"`
}

// GCSConfig configures the Google Cloud Storage boundary.
type GCSConfig struct {
	// Project is the GCP project the buckets live in.
	Project string `mapstructure:"project"`
	// Bucket is the default bucket for requests with an empty scope.
	Bucket string `mapstructure:"bucket"`
}

// S3Config configures the Amazon S3 boundary.
type S3Config struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
	// Endpoint overrides the AWS endpoint, for S3-compatible stores.
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LocalConfig configures the on-disk boundary.
type LocalConfig struct {
	// Path is the directory holding the badger database.
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
}
