package cli

import (
	"fmt"
	"time"
)

// FormatDuration formats d as 850ms, 1.5s or 2m5.5s.
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs = secs - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}
