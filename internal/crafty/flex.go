package crafty

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The monitoring provider encodes the same logical field as a number, a
// string, a boolean sentinel ("False", false) or not at all, depending on
// server state. Each adapter below decodes every variant to a typed value
// and never fails: anything it cannot interpret becomes the zero value.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// FlexInt decodes an integer that may arrive as a number, a numeric
// string, a boolean or null.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == 'n' || b[0] == 't' || b[0] == 'f' {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(n)
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(int(n))
	}
	return nil
}

// FlexBool decodes a boolean that may arrive as a bool, "true"/"false" in
// any case, or a number.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	*f = false
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case 't':
		*f = true
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			*f = FlexBool(v)
		}
	case 'n', 'f':
	default:
		if n, err := strconv.ParseFloat(string(b), 64); err == nil {
			*f = n != 0
		}
	}
	return nil
}

// FlexString decodes a string that may arrive as false or a number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	*f = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*f = FlexString(s)
		}
	case 'n', 't', 'f', '{', '[':
	default:
		*f = FlexString(b)
	}
	return nil
}

// FlexTime holds an optional timestamp as received. Naive strings carry no
// zone, so they are resolved by In against the provider's location.
type FlexTime struct {
	raw  string
	unix *time.Time
}

func (f *FlexTime) UnmarshalJSON(b []byte) error {
	*f = FlexTime{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		f.raw = s
	case 'n', 't', 'f', '{', '[':
	default:
		if secs, err := strconv.ParseFloat(string(b), 64); err == nil && secs > 0 {
			t := time.Unix(int64(secs), 0).UTC()
			f.unix = &t
		}
	}
	return nil
}

// In returns the timestamp in UTC, reading naive strings in loc. Strings
// that do not parse, such as the "False" the provider sends for a stopped
// server, yield nil.
func (f FlexTime) In(loc *time.Location) *time.Time {
	if f.unix != nil {
		t := *f.unix
		return &t
	}
	return parseTime(f.raw, loc)
}

func parseTime(s string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
