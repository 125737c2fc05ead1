// Package clock wraps stdlib time.Time to pin the JSON wire format, so
// that a load→save round trip of run_state.json is byte-stable.
package clock

import (
	"encoding/json"
	"time"
)

// Time wraps time.Time. The zero value marshals to "" instead of the
// default zero-time string; non-zero values marshal as RFC3339.
type Time time.Time

// Now returns the current instant as a Time.
func Now() Time { return Time(time.Now().UTC()) }

// IsZero reports whether t is the zero value.
func (t Time) IsZero() bool { return time.Time(t).IsZero() }

// Std returns the underlying time.Time.
func (t Time) Std() time.Time { return time.Time(t) }

// MarshalJSON renders the zero value as "" and everything else as RFC3339.
func (t Time) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(time.Time(t).Format(time.RFC3339))
}

// UnmarshalJSON accepts "" (zero value) or an RFC3339 timestamp.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Time(parsed)
	return nil
}
