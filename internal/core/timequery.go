package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince resolves a lower time bound relative to now. It accepts
// "30m", "2h", "3d", "1w", "today", "yesterday" and RFC 3339 timestamps.
func ParseSince(expr string, now time.Time) (time.Time, error) {
	value := strings.ToLower(strings.TrimSpace(expr))
	if value == "" {
		return time.Time{}, &ValidationError{Field: "since", Reason: "is empty"}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch value {
	case "today":
		return midnight, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	}

	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(expr)); err == nil {
		return ts, nil
	}

	if d, ok := parseRelative(value); ok {
		return now.Add(-d), nil
	}
	return time.Time{}, &ValidationError{Field: "since", Reason: fmt.Sprintf("%q is not a time expression", expr)}
}

func parseRelative(value string) (time.Duration, bool) {
	if len(value) < 2 {
		return 0, false
	}
	var unit time.Duration
	switch value[len(value)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	amount, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || amount <= 0 {
		return 0, false
	}
	return time.Duration(amount) * unit, true
}
