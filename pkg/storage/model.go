package storage

import "fmt"

// ListOptions controls one List page.
type ListOptions struct {
	// MaxResults caps the page size; <= 0 lets the boundary choose.
	MaxResults int
	// PageToken resumes listing where a previous page stopped.
	PageToken string
}

// ObjectList is one page of a hierarchical listing: the objects directly
// below the listed reference plus the prefixes ("folders") beneath it.
type ObjectList struct {
	Items         []*Reference
	Prefixes      []string
	NextPageToken string
}

func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "N/A"
	}
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	sizes := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	if exp >= len(sizes) {
		return fmt.Sprintf("%d B", bytes) // Fallback if extremely large
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp])
}
