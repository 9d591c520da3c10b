package graph

import (
	"strconv"
	"strings"
	"time"

	mnemoerrors "mnemo/internal/errors"
)

// ParseDuration parses the grammar N(ms|s|m|h|d) used for ttl strings
// throughout the snapshot format. time.ParseDuration almost covers this
// but does not understand the "d" (day) unit, so durations are parsed by
// hand here rather than pulling in a calendar library for one unit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, mnemoerrors.Validation("empty duration")
	}
	for i, unit := range []string{"ms", "s", "m", "h", "d"} {
		_ = i
		if strings.HasSuffix(s, unit) {
			numPart := strings.TrimSuffix(s, unit)
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil || n < 0 {
				return 0, mnemoerrors.Validation("malformed duration %q", s)
			}
			switch unit {
			case "ms":
				return time.Duration(n * float64(time.Millisecond)), nil
			case "s":
				return time.Duration(n * float64(time.Second)), nil
			case "m":
				return time.Duration(n * float64(time.Minute)), nil
			case "h":
				return time.Duration(n * float64(time.Hour)), nil
			case "d":
				return time.Duration(n * float64(24*time.Hour)), nil
			}
		}
	}
	return 0, mnemoerrors.Validation("malformed duration %q", s)
}
