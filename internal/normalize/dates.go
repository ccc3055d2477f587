package normalize

import (
	"strings"
	"time"
)

const (
	LayoutGerman = "02.01.2006"
	LayoutISO    = "2006-01-02"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
	LayoutISO,
}

// ParseDate parses text with layout. Absent, unparsable and zero-year
// sentinel dates give the zero time.
func ParseDate(layout, text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" || sentinel(text) {
		return time.Time{}
	}
	t, err := time.ParseInLocation(layout, text, time.UTC)
	if err != nil || t.Year() == 0 {
		return time.Time{}
	}
	return t
}

// ParseDateTime parses iso dates with either ' ' or 'T' between date and time.
func ParseDateTime(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" || sentinel(text) {
		return time.Time{}
	}
	for _, layout := range dateTimeLayouts {
		t, err := time.ParseInLocation(layout, text, time.UTC)
		if err == nil && t.Year() != 0 {
			return t
		}
	}
	return time.Time{}
}

// FirstDate returns the first non-zero date parsed with layout.
func FirstDate(layout string, texts ...string) time.Time {
	for _, text := range texts {
		t := ParseDate(layout, text)
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// sentinel matches the all-zero dates backends print for "no date", ex.
// 00.00.0000 or 0000-00-00 00:00:00.
func sentinel(text string) bool {
	return strings.Trim(text, "0.-:T ") == ""
}

// DateOnly drops the time of day, the zero time stays zero.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
