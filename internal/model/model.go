package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of record kinds the layout pipeline understands.
type Kind int

const (
	KindDay Kind = iota
	KindTimed
	KindMultiDay
)

func (k Kind) String() string {
	switch k {
	case KindDay:
		return "DAY"
	case KindTimed:
		return "TIMED"
	case KindMultiDay:
		return "MULTI_DAY"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps the wire names DAY / TIMED / MULTI_DAY to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAY":
		return KindDay, nil
	case "TIMED":
		return KindTimed, nil
	case "MULTI_DAY":
		return KindMultiDay, nil
	default:
		return 0, fmt.Errorf("unknown record kind %q", s)
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Timestamp is an epoch-millisecond instant. Upstream payloads send either a
// JSON number or a numeric string; anything unparsable decodes to NaN so the
// classifier can drop the record instead of failing the whole batch.
type Timestamp float64

// MillisOf converts a time.Time to a Timestamp.
func MillisOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Earliest/latest instants accepted as real timestamps (years 0001..9999).
var (
	minMillis = float64(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxMillis = float64(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).UnixMilli())
)

// Valid reports whether ts is finite and inside the representable calendar range.
func (ts Timestamp) Valid() bool {
	f := float64(ts)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f >= minMillis && f <= maxMillis
}

// Time returns the instant in loc. ok is false for invalid timestamps.
func (ts Timestamp) Time(loc *time.Location) (t time.Time, ok bool) {
	if !ts.Valid() {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(int64(ts)).In(loc), true
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(int64(ts), 10)), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*ts = Timestamp(math.NaN())
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f = math.NaN()
	}
	*ts = Timestamp(f)
	return nil
}

// Record is a time-stamped activity supplied by the persistence or fetch layer.
// The layout pipeline only ever reads it.
type Record struct {
	ID         string    `json:"id"`
	StartedAt  Timestamp `json:"startedAt"`
	EndedAt    Timestamp `json:"endedAt"`
	Kind       Kind      `json:"kind"`
	Title      string    `json:"title"`
	GroupID    string    `json:"groupId"`
	GroupColor string    `json:"groupColor,omitempty"`
}

// Group is a visibility bucket for records (an ICS source, a category, ...).
type Group struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}
