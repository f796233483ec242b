package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Layouts seen in storage responses. Layouts without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Time is a timestamp that decodes from any representation the storage
// service has been observed to use: RFC3339 strings, zone-less date-times,
// or integer unix seconds.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t}
}

func ParseTime(s string) (Time, error) {
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return Time{Time: t}, nil
		}
	}
	seconds, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return Time{Time: time.Unix(seconds, 0).UTC()}, nil
	}
	return Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnixSeconds is the integer unix time, or 0 for an unset timestamp.
func (t Time) UnixSeconds() int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		*t = Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		parsed, err := ParseTime(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	seconds, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %s", data)
	}
	*t = Time{Time: time.Unix(seconds, 0).UTC()}
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
