package util //nolint:revive // package name util hosts shared CLI formatting helpers

import "time"

// FormatElapsed renders a duration for operator output. Non-positive durations print as "0s";
// anything at or above a millisecond is truncated to whole milliseconds.
func FormatElapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}

// YesNo renders b for table output.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
