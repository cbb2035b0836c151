package db

import "time"

// TimeLayout is fixed-width UTC so string comparison in SQL matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime encodes t for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime decodes a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// NullTime encodes an optional timestamp; nil stays NULL.
func NullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}
