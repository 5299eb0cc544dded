package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseSchedule turns a backup schedule into its interval. It accepts hourly,
// daily, weekly, or any positive Go duration.
func ParseSchedule(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly":
		return time.Hour, nil
	case "daily":
		return 24 * time.Hour, nil
	case "weekly":
		return 7 * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: want hourly, daily, weekly or a duration", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid schedule %q: must be positive", s)
	}
	return d, nil
}
