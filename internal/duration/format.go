package duration

import (
	"fmt"
	"time"
)

// FormatHMS renders milliseconds as zero-padded HH:MM:SS
func FormatHMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatShort renders a duration as a compact string for alert messages
func FormatShort(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60

	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
