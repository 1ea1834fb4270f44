package flags

// Centralized definitions for CLI flags used across the application

const (
	// Provider flags select which storage boundary an operation targets
	Provider      = "provider"
	ProviderShort = "p"

	// Bucket flags override the configured default bucket for a single invocation
	Bucket      = "bucket"
	BucketShort = "b"

	// App flags override the configured application identifier
	App = "app"

	// Force flags bypass interactive confirmation prompts for destructive operations
	Force      = "force"
	ForceShort = "f"

	// Debug flags enable verbose logging
	Debug      = "debug"
	DebugShort = "d"

	// Watch flags switch transfer commands to the live task view
	Watch      = "watch"
	WatchShort = "w"

	// MaxSize caps how many bytes cat will read into memory
	MaxSize = "max-size"

	// Listing flags control pagination
	MaxResults = "max-results"
	PageToken  = "page-token"

	// Writable metadata flags; passing an empty string clears the attribute
	ContentType        = "content-type"
	CacheControl       = "cache-control"
	ContentDisposition = "content-disposition"
	ContentEncoding    = "content-encoding"
	ContentLanguage    = "content-language"
)
