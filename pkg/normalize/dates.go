package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical rendering of a normalized date.
const DateLayout = "2006-01-02"

// Spreadsheet serial dates count days from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const (
	minSerial = 1
	maxSerial = 2958465 // 9999-12-31
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
}

// Day-first layouts, tried after ISO dates.
var dateLayouts = []string{
	DateLayout,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
}

// ParseDate normalizes v to a calendar date at UTC midnight. It tries, in
// order: a native time value, a timestamp truncated to its date, YYYY-MM-DD,
// DD/MM/YYYY, DD-MM-YYYY and finally a spreadsheet serial day count.
func ParseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return truncate(x), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return ParseDate(*x)
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	case float64:
		return fromSerial(x)
	}

	s := RawString(v)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return fromSerial(f)
	}
	return time.Time{}, false
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func fromSerial(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(f))), true
}

// DaysBetween is the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(truncate(b).Sub(truncate(a)).Hours() / 24))
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
