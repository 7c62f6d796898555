package plans

import (
	"encoding/json"
	"fmt"
)

// Time is a wall-clock time of day, carried on the wire as "HH:MM".
type Time struct {
	Hour   int
	Minute int
}

// NewTime creates a Time, rejecting out-of-range values.
func NewTime(hour, minute int) (Time, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Time{}, fmt.Errorf("invalid time: %02d:%02d", hour, minute)
	}
	return Time{Hour: hour, Minute: minute}, nil
}

// Before reports whether t is earlier in the day than other.
func (t Time) Before(other Time) bool {
	return t.minutes() < other.minutes()
}

func (t Time) minutes() int {
	return t.Hour*60 + t.Minute
}

// String returns the "HH:MM" form.
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON encodes the time as an "HH:MM" string.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an "HH:MM" string, rejecting malformed or
// out-of-range input.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid time format: %q", s)
	}

	parsed, err := NewTime(hour, minute)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
