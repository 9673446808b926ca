package migration

import (
	"strconv"
	"strings"
	"time"
)

// FormatTimestamp renders a Hangouts timestamp (microseconds since the Unix epoch) as RFC3339 UTC.
// It returns "" for values that are not a positive integer.
func FormatTimestamp(ts string) string {
	us, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || us <= 0 {
		return ""
	}
	return time.UnixMicro(us).UTC().Format(time.RFC3339)
}
