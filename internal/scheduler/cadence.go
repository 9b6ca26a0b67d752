package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Named cadence tokens producers commonly send. Compound forms fall through
// to the <integer><unit> pattern below.
var namedCadences = map[string]time.Duration{
	"realtime":   time.Minute,
	"15m":        15 * time.Minute,
	"hourly":     time.Hour,
	"daily":      24 * time.Hour,
	"weekly":     7 * 24 * time.Hour,
	"biweekly":   14 * 24 * time.Hour,
	"monthly":    30 * 24 * time.Hour,
	"quarterly":  90 * 24 * time.Hour,
	"semiannual": 182 * 24 * time.Hour,
	"annually":   365 * 24 * time.Hour,
	"yearly":     365 * 24 * time.Hour,
}

var cadencePattern = regexp.MustCompile(`^(\d+)([mhdw])$`)

// ParseCadence turns a human-authored cadence string into a refresh interval.
// Zero means "no schedule": the card behaves as manual and the sweep skips it.
func ParseCadence(cadence string) time.Duration {
	c := strings.ToLower(strings.TrimSpace(cadence))
	if c == "" {
		return 0
	}
	if d, ok := namedCadences[c]; ok {
		return d
	}
	m := cadencePattern.FindStringSubmatch(c)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	case "d":
		return time.Duration(n) * 24 * time.Hour
	case "w":
		return time.Duration(n) * 7 * 24 * time.Hour
	}
	return 0
}
