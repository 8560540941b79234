package vrm

import (
	"encoding/json"
	"fmt"
	"time"
)

// timeLayouts are tried in order when decoding a [Time].
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Time supports unmarshalling dates and times returned by the VRM API,
// which mixes full timestamps and plain dates.
type Time struct {
	time.Time
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (m *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			m.Time = t
			return nil
		}
	}

	return fmt.Errorf("invalid time %q", s)
}

// MarshalJSON implements the [json.Marshaler] interface.
// The zero time is written as null.
func (m Time) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.Time)
}
