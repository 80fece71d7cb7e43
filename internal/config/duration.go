package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/tomato/internal/timer"
)

// MaxSeconds is the longest phase length ParseSeconds accepts.
const MaxSeconds = math.MaxInt32

// ParseSeconds reads a phase length typed by a user. A bare integer counts
// minutes ("25"); anything else must be a Go duration ("90s", "1h30m").
// Fractions of a second are dropped.
func ParseSeconds(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if minutes, err := strconv.Atoi(raw); err == nil {
		if minutes <= 0 {
			return 0, fmt.Errorf("%q: %w", raw, timer.ErrInvalidDuration)
		}
		if minutes > MaxSeconds/60 {
			return 0, fmt.Errorf("%q: longer than %d minutes: %w", raw, MaxSeconds/60, timer.ErrInvalidDuration)
		}
		return minutes * 60, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use minutes like 25 or a duration like 90s)", raw)
	}
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return 0, fmt.Errorf("%q: %w", raw, timer.ErrInvalidDuration)
	}
	if seconds > MaxSeconds {
		return 0, fmt.Errorf("%q: longer than %d seconds: %w", raw, MaxSeconds, timer.ErrInvalidDuration)
	}
	return int(seconds), nil
}

// FormatSeconds is the inverse of ParseSeconds: whole minutes print as a
// bare integer, anything else as a duration.
func FormatSeconds(seconds int) string {
	if seconds > 0 && seconds%60 == 0 {
		return strconv.Itoa(seconds / 60)
	}
	return (time.Duration(seconds) * time.Second).String()
}
