package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for loan and return dates.
const DateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// CalendarDate truncates t to its UTC calendar date.
func CalendarDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// NullableDate distinguishes an absent JSON field from an explicit null.
// An empty string is treated as null.
type NullableDate struct {
	Set   bool
	Value *string
}

// SetDate returns a NullableDate carrying date.
func SetDate(date string) NullableDate {
	return NullableDate{Set: true, Value: &date}
}

// ClearDate returns a NullableDate that explicitly clears the value.
func ClearDate() NullableDate {
	return NullableDate{Set: true}
}

func (d *NullableDate) UnmarshalJSON(data []byte) error {
	d.Set = true
	d.Value = nil
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string or null: %w", err)
	}
	s = strings.TrimSpace(s)
	if s != "" {
		d.Value = &s
	}
	return nil
}

func (d NullableDate) MarshalJSON() ([]byte, error) {
	if d.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*d.Value)
}
