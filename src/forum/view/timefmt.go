// Package view turns ledger records into display rows.
package view

import (
	"fmt"
	"time"
)

const (
	minute = 60
	hour   = 60 * minute
	day    = 24 * hour
)

// RelativeTime labels ts (unix seconds) by the largest non-zero bucket of
// its age at now. Months are 30 days and years 365; future timestamps are
// "just now".
func RelativeTime(ts uint64, now time.Time) string {
	var delta uint64
	if n := now.Unix(); n > 0 && uint64(n) > ts {
		delta = uint64(n) - ts
	}
	days := delta / day
	switch {
	case days/365 > 0:
		return fmt.Sprintf("%dy ago", days/365)
	case days/30 > 0:
		return fmt.Sprintf("%dmo ago", days/30)
	case days > 0:
		return fmt.Sprintf("%dd ago", days)
	case delta/hour > 0:
		return fmt.Sprintf("%dh ago", delta/hour)
	case delta/minute > 0:
		return fmt.Sprintf("%dm ago", delta/minute)
	}
	return "just now"
}

func FormatRelativeTime(ts uint64) string {
	return RelativeTime(ts, time.Now())
}

// Timestamp renders ts as an absolute UTC time.
func Timestamp(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02 15:04:05 UTC")
}
