package webui

import (
	"fmt"
	"time"
)

var durationUnits = []struct {
	suffix string
	size   time.Duration
}{
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// FormatDuration renders d with its two largest units, for example
// "2h 34m" or "45s". Sub-second durations are "0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}

	for i, u := range durationUnits {
		n := d / u.size
		if n == 0 {
			continue
		}
		if i == len(durationUnits)-1 {
			return fmt.Sprintf("%d%s", n, u.suffix)
		}
		next := durationUnits[i+1]
		rest := (d % u.size) / next.size
		return fmt.Sprintf("%d%s %d%s", n, u.suffix, rest, next.suffix)
	}
	return "0s"
}
