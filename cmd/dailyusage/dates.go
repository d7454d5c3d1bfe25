package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/dailyusage/pkg/models"
)

// timeNow is replaced in tests
var timeNow = time.Now

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d").
// An empty string means today. The result is the calendar date at midnight UTC.
func parseDate(dateStr string, now time.Time) (time.Time, error) {
	if dateStr == "" {
		return calendarDate(now), nil
	}

	// Try absolute date format first
	t, err := time.Parse(models.DateLayout, dateStr)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if days, ok := strings.CutSuffix(dateStr, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return calendarDate(now.AddDate(0, 0, -n)), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}

// calendarDate keeps the local calendar date of t
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
