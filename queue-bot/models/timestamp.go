package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is written as RFC 3339. It also reads ISO-8601 values without a
// zone offset, taking them as local time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func Now() Timestamp {
	return At(time.Now())
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		if v, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", raw)
}
