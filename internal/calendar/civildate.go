// Package calendar lays out time-stamped records on a month grid: it builds
// the week-aligned day cells, buckets records into civil dates, assigns each
// event a vertical line and splits multi-day events into per-week fragments.
//
// Every function here is pure. The only stateful type is Cache, which callers
// own explicitly.
package calendar

import (
	"time"

	"monthcal/internal/model"
)

const (
	// DaysPerWeek is the number of columns in the grid.
	DaysPerWeek = 7

	civilLayout   = "20060102"
	secondsPerDay = 24 * 60 * 60
)

// CivilDate is a date-only key (YYYYMMDD) resolved in the configured zone.
// Lexicographic order on the key equals chronological order.
type CivilDate string

// DateOf returns the civil date of t in loc.
func DateOf(t time.Time, loc *time.Location) CivilDate {
	if loc != nil {
		t = t.In(loc)
	}
	return CivilDate(t.Format(civilLayout))
}

// DateFromMillis resolves an epoch-ms timestamp to a civil date in loc.
// ok is false when the timestamp is non-finite or out of range, including
// instants at the ends of the range whose local date leaves years 1..9999.
func DateFromMillis(ts model.Timestamp, loc *time.Location) (CivilDate, bool) {
	t, ok := ts.Time(loc)
	if !ok || t.Year() < 1 || t.Year() > 9999 {
		return "", false
	}
	return DateOf(t, nil), true
}

// NewCivilDate builds a key from calendar fields; out-of-range fields roll
// over the way time.Date does.
func NewCivilDate(year int, month time.Month, day int) CivilDate {
	return CivilDate(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(civilLayout))
}

// Time returns midnight UTC of the date. It is only meant for day arithmetic.
func (d CivilDate) Time() time.Time {
	t, err := time.Parse(civilLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Midnight returns the first instant of the date in loc.
func (d CivilDate) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := d.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Valid reports whether d is a well-formed key.
func (d CivilDate) Valid() bool {
	_, err := time.Parse(civilLayout, string(d))
	return err == nil
}

func (d CivilDate) AddDays(n int) CivilDate {
	return CivilDate(d.Time().AddDate(0, 0, n).Format(civilLayout))
}

func (d CivilDate) Before(o CivilDate) bool { return d < o }

func (d CivilDate) After(o CivilDate) bool { return d > o }

func (d CivilDate) String() string { return string(d) }

// ordinal numbers days from the Unix epoch. Keys are midnight UTC, so the
// division is exact on both sides of 1970.
func (d CivilDate) ordinal() int64 {
	return d.Time().Unix() / secondsPerDay
}

// DaysBetween returns b - a in whole days. It does not go through
// time.Duration, which saturates after about 292 years.
func DaysBetween(a, b CivilDate) int {
	return int(b.ordinal() - a.ordinal())
}

// DateRange returns every date from start to end inclusive. It returns nil
// when end is before start or either key is malformed.
func DateRange(start, end CivilDate) []CivilDate {
	if !start.Valid() || !end.Valid() || end.Before(start) {
		return nil
	}
	n := DaysBetween(start, end)
	out := make([]CivilDate, 0, n+1)
	first := start.Time()
	for i := 0; i <= n; i++ {
		out = append(out, CivilDate(first.AddDate(0, 0, i).Format(civilLayout)))
	}
	return out
}
