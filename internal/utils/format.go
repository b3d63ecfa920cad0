package utils

import "fmt"

// FormatBytes renders a byte count in binary units with one decimal place,
// e.g. "1.5 GB".
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatFileSize renders an object size. Listings report unknown sizes as
// negative; those render as zero.
func FormatFileSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return FormatBytes(uint64(size))
}
