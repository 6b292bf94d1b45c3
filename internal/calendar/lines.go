package calendar

import (
	"fmt"
	"slices"
	"strings"
)

// LinePolicy selects how vertical lines are handed out.
type LinePolicy int

const (
	// PolicyReserve keeps a multi-day event's line occupied on every date of
	// its span, so its bar stays level across the week.
	PolicyReserve LinePolicy = iota
	// PolicyFirstFit puts each event on the lowest line with no date overlap.
	PolicyFirstFit
)

func (p LinePolicy) String() string {
	switch p {
	case PolicyReserve:
		return "reserve"
	case PolicyFirstFit:
		return "first_fit"
	default:
		return fmt.Sprintf("LinePolicy(%d)", int(p))
	}
}

// ParseLinePolicy accepts "reserve" and "first_fit" (also "first-fit").
func ParseLinePolicy(s string) (LinePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reserve":
		return PolicyReserve, nil
	case "first_fit", "first-fit", "firstfit":
		return PolicyFirstFit, nil
	default:
		return PolicyReserve, fmt.Errorf("unknown line policy %q", s)
	}
}

// LineOptions configures AssignLines.
type LineOptions struct {
	Policy LinePolicy
	// MaxVisible caps the visible lines per date. Zero means no cap.
	MaxVisible int
}

// LineResult holds the events with lines set and, when a cap is configured,
// the number of hidden events per date.
type LineResult struct {
	Events   []Event
	Overflow map[CivilDate]int
}

// AssignLines gives every event a line. events must already be in start
// order (as Classify returns them); the input slice is not modified.
func AssignLines(events []Event, opts LineOptions) LineResult {
	out := make([]Event, len(events))
	copy(out, events)

	switch opts.Policy {
	case PolicyFirstFit:
		assignFirstFit(out)
	case PolicyReserve:
		assignReserve(out)
	default:
		assignReserve(out)
	}

	res := LineResult{Events: out, Overflow: make(map[CivilDate]int)}
	if opts.MaxVisible > 0 {
		for i := range out {
			if out[i].LinePosition < opts.MaxVisible {
				continue
			}
			out[i].Hidden = true
			for _, d := range out[i].Dates() {
				res.Overflow[d]++
			}
		}
	}
	return res
}

// assignReserve: single-day events take the next free line of their date;
// multi-day events take the highest next-free line across the span and
// reserve it on every date, even ones nothing else occupies.
//
// The next-free line only changes at span boundaries, so it is tracked per
// run of days between consecutive boundaries instead of per date. A span of
// a few thousand years costs as much as a single day.
func assignReserve(events []Event) {
	bounds := make([]int64, 0, 2*len(events))
	for _, ev := range events {
		bounds = append(bounds, ev.StartDate.ordinal(), ev.EndDate.ordinal()+1)
	}
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	// next[k] covers days bounds[k] .. bounds[k+1]-1.
	next := make([]int, len(bounds))
	for i := range events {
		ev := &events[i]
		lo, _ := slices.BinarySearch(bounds, ev.StartDate.ordinal())
		hi, _ := slices.BinarySearch(bounds, ev.EndDate.ordinal()+1)

		maxLine := 0
		for k := lo; k < hi; k++ {
			maxLine = max(maxLine, next[k])
		}
		ev.LinePosition = maxLine
		for k := lo; k < hi; k++ {
			next[k] = maxLine + 1
		}
	}
}

type dateInterval struct {
	start, end CivilDate
}

func (a dateInterval) overlaps(b dateInterval) bool {
	return !a.end.Before(b.start) && !b.end.Before(a.start)
}

func assignFirstFit(events []Event) {
	var lines [][]dateInterval
	for i := range events {
		ev := &events[i]
		iv := dateInterval{start: ev.StartDate, end: ev.EndDate}

		placed := false
		for line, occupied := range lines {
			if fits(occupied, iv) {
				ev.LinePosition = line
				lines[line] = append(lines[line], iv)
				placed = true
				break
			}
		}
		if !placed {
			ev.LinePosition = len(lines)
			lines = append(lines, []dateInterval{iv})
		}
	}
}

func fits(occupied []dateInterval, iv dateInterval) bool {
	for _, o := range occupied {
		if o.overlaps(iv) {
			return false
		}
	}
	return true
}
