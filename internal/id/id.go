package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewLocal returns a transient transaction ID like "1736035200000"
// (milliseconds since the epoch). It is only a rendering key until the
// backend assigns a real ID.
func NewLocal(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// NewRequestID returns a random ID for the X-Request-ID header.
func NewRequestID() string {
	return uuid.NewString()
}

// FormatDayKey returns a day key like "20250105".
func FormatDayKey(t time.Time) string {
	return fmt.Sprintf("%04d%02d%02d", t.Year(), int(t.Month()), t.Day())
}

// ParseDayKey parses "20250105" or "2025-01-05" into a UTC midnight.
// Days that do not exist in the given month are rejected.
func ParseDayKey(key string) (time.Time, error) {
	key = strings.TrimSpace(key)
	compact := key
	if len(key) == 10 {
		if key[4] != '-' || key[7] != '-' {
			return time.Time{}, fmt.Errorf("invalid day key format: %q", key)
		}
		compact = key[0:4] + key[5:7] + key[8:10]
	}
	if len(compact) != 8 || strings.Trim(compact, "0123456789") != "" {
		return time.Time{}, fmt.Errorf("invalid day key format: %q", key)
	}

	year, _ := strconv.Atoi(compact[0:4])
	month, _ := strconv.Atoi(compact[4:6])
	day, _ := strconv.Atoi(compact[6:8])
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("day key %q out of range", key)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("day key %q is not a calendar day", key)
	}
	return t, nil
}
