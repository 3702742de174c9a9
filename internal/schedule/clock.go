// Package schedule holds the time primitives shared by the hall and
// participant conflict checks: wall-clock minutes, half-open windows
// and calendar-day normalization.
package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Clock is a time of day stored as minutes since midnight. It marshals
// as a zero-padded "HH:mm" string and persists as an integer column,
// so comparisons never depend on string formatting.
type Clock int

// ParseClock parses a zero-padded 24-hour "HH:mm" string.
func ParseClock(raw string) (Clock, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:mm", raw)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// String renders the clock as "HH:mm".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalJSON renders the clock as a "HH:mm" JSON string.
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a "HH:mm" JSON string.
func (c *Clock) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer, storing minutes since midnight.
func (c Clock) Value() (driver.Value, error) {
	return int64(c), nil
}

// Scan implements sql.Scanner for integer columns.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*c = Clock(v)
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Clock", src)
	}
}

// Day truncates a timestamp to its UTC calendar midnight. All same-day
// comparisons in the system go through this single policy.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a "YYYY-MM-DD" calendar date as a UTC midnight.
func ParseDay(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return Day(t), nil
}
