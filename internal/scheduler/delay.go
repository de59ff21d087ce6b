// Package scheduler asks the scheduling service to call a recipient again later.
package scheduler

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	defaultDelay        = time.Hour
	defaultMinutesDelay = 30 * time.Minute
	tomorrowDelay       = 24 * time.Hour
)

// ParseDelay turns a spoken preferred time such as "in 2 hours" or "tomorrow afternoon" into a delay.
//
// The digits before the first "hour" give hours, defaulting to one. Otherwise "tomorrow" means a day. Otherwise the
// digits before "minute" give minutes, defaulting to thirty. Anything else is an hour. A count too large for a
// [time.Duration] falls back to the default of its unit.
func ParseDelay(preferredTime string) time.Duration {
	text := strings.ToLower(preferredTime)
	if before, _, found := strings.Cut(text, "hour"); found {
		if hours, ok := digits(before); ok {
			return scaled(hours, time.Hour, defaultDelay)
		}
		return defaultDelay
	}
	if strings.Contains(text, "tomorrow") {
		return tomorrowDelay
	}
	if before, _, found := strings.Cut(text, "minute"); found {
		if minutes, ok := digits(before); ok {
			return scaled(minutes, time.Minute, defaultMinutesDelay)
		}
		return defaultMinutesDelay
	}
	return defaultDelay
}

func scaled(n int, unit, fallback time.Duration) time.Duration {
	if int64(n) > math.MaxInt64/int64(unit) {
		return fallback
	}
	return time.Duration(n) * unit
}

// digits joins every digit in s, so that "1 or 2" reads as 12.
func digits(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}
