package timeutil

import "time"

// ToMillis converts t to Unix milliseconds. The zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts Unix milliseconds to a UTC time. 0 maps to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ParseRetention parses a duration that may also be written in whole days, e.g. "30d".
func ParseRetention(value string) (time.Duration, error) {
	if n := len(value); n > 1 && value[n-1] == 'd' {
		days, err := time.ParseDuration(value[:n-1] + "h")
		if err != nil {
			return 0, err
		}
		return days * 24, nil
	}
	return time.ParseDuration(value)
}
