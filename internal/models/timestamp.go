package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// dateTag marks a wrapped date in persisted JSON so it survives a round trip
// through stores that only understand plain JSON values.
const dateTag = "Date"

// Timestamp is a time.Time that serializes as {"__type":"Date","value":"<RFC3339>"}.
type Timestamp struct {
	time.Time
}

type taggedDate struct {
	Type  string `json:"__type"`
	Value string `json:"value"`
}

func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(taggedDate{
		Type:  dateTag,
		Value: t.UTC().Format(time.RFC3339Nano),
	})
}

// UnmarshalJSON accepts the tagged form, a bare RFC3339 string, or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var tagged taggedDate
		if err := json.Unmarshal(data, &tagged); err != nil {
			return err
		}
		if tagged.Type != dateTag {
			return fmt.Errorf("unexpected date tag %q", tagged.Type)
		}
		raw = tagged.Value
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("invalid date value %q: %w", raw, err)
	}
	t.Time = parsed.UTC()
	return nil
}
