package countdown

import (
	"fmt"
	"strings"
)

// LoadingPlaceholder is shown in place of the timer until a config is available.
const LoadingPlaceholder = "--:--:--"

// FormatCountdown renders a timer as HH:MM:SS. Hours wider than two digits are kept intact.
func FormatCountdown(hours, minutes, seconds uint32) string {
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatTimeRemaining renders a coarse duration, e.g. "10 hours 15 minutes",
// "1 hour 1 minute" or "5 minutes". Minutes are always shown when hours is zero.
func FormatTimeRemaining(hours, minutes uint32) string {
	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 || hours == 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n uint32, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
