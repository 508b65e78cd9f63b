package utils

import "fmt"

// FormatCPUCores formats milliCores as a human readable core count.
func FormatCPUCores(milliValue int64) string {
	if milliValue < 1000 {
		return fmt.Sprintf("%dm", milliValue)
	}
	return fmt.Sprintf("%.2f", float64(milliValue)/1000)
}

// FormatBytesToHumanReadable formats a byte count with binary units.
func FormatBytesToHumanReadable(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ci", float64(bytes)/float64(div), "KMGTPE"[exp])
}
