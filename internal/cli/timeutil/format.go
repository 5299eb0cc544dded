// Package timeutil formats timestamps and durations for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LayoutLocal is the layout of timestamps in listings.
const LayoutLocal = "2006-01-02 15:04:05"

// Format renders t in local time, or "-" when t is unset.
func Format(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LayoutLocal)
}

// FormatDuration renders d as "3d 0h 30m 15s", dropping leading zero units.
// Sub-second durations are shown in milliseconds.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
