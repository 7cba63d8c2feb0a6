package apiutil

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock converts an "HH:MM" wall-clock string to minutes of day.
func ParseClock(value string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("must be HH:MM")
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || len(parts[0]) != 2 {
		return 0, fmt.Errorf("must be HH:MM")
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("must be HH:MM")
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("must be a valid time of day")
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes of day as "HH:MM".
func FormatClock(minutes int64) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseID parses a positive integer path value.
func ParseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParsePagination reads limit/offset query values with bounds applied.
func ParsePagination(limitRaw, offsetRaw string, defaultLimit, maxLimit int64) (limit, offset int64) {
	limit = defaultLimit
	if limitRaw != "" {
		if parsed, err := strconv.ParseInt(limitRaw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offsetRaw != "" {
		if parsed, err := strconv.ParseInt(offsetRaw, 10, 64); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
