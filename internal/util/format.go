package util //nolint:revive // package name util hosts shared formatting helpers used across CLI output

import (
	"fmt"
	"time"
)

// FormatAccountAge renders how long ago a profile row was created, coarse
// enough for CLI tables.
func FormatAccountAge(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Minute:
		return d.Truncate(time.Second).String()
	case d < time.Hour:
		return d.Truncate(time.Minute).String()
	case d < 24*time.Hour:
		return d.Truncate(time.Hour).String()
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}
