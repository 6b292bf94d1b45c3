package calendar

// Border is a rendering hint for the rounded ends of a fragment's bar.
type Border string

const (
	BorderStart  Border = "start"
	BorderMiddle Border = "middle"
	BorderEnd    Border = "end"
	// BorderFull is a fragment that is both the first and the last one.
	BorderFull Border = "full"
)

// Fragment is the part of a multi-day event that falls inside one grid row.
type Fragment struct {
	Event                  Event  `json:"event"`
	Row                    int    `json:"row"`
	WeekCount              int    `json:"weekCount"`
	Column                 int    `json:"column"`
	SpanDays               int    `json:"spanDays"`
	StartsBeforeThisWeek   bool   `json:"startsBeforeThisWeek"`
	ContinuesAfterThisWeek bool   `json:"continuesAfterThisWeek"`
	Border                 Border `json:"border"`
}

// Segment splits every visible multi-day event into per-row fragments.
// Events that miss the grid entirely produce nothing; events that run past
// either edge of the grid are clipped and flagged as continuing on that side.
func Segment(events []Event, grid []Day) []Fragment {
	if len(grid) == 0 {
		return nil
	}
	index := IndexGrid(grid)
	first, last := grid[0].ID, grid[len(grid)-1].ID

	var out []Fragment
	for _, ev := range events {
		if !ev.IsMultiDay || ev.Hidden {
			continue
		}
		if ev.EndDate.Before(first) || ev.StartDate.After(last) {
			continue
		}

		clippedStart, clippedEnd := false, false
		start, end := ev.StartDate, ev.EndDate
		if start.Before(first) {
			start, clippedStart = first, true
		}
		if end.After(last) {
			end, clippedEnd = last, true
		}
		out = append(out, segmentEvent(ev, index[start], index[end], clippedStart, clippedEnd)...)
	}
	return out
}

func segmentEvent(ev Event, startIndex, endIndex int, clippedStart, clippedEnd bool) []Fragment {
	var frags []Fragment
	current := startIndex
	weekCount := 0
	for current <= endIndex {
		row, col := Position(current)
		weekEndIndex := min(row*DaysPerWeek+DaysPerWeek-1, endIndex)

		frags = append(frags, Fragment{
			Event:                  ev,
			Row:                    row,
			WeekCount:              weekCount,
			Column:                 col,
			SpanDays:               weekEndIndex - current + 1,
			StartsBeforeThisWeek:   weekCount > 0 || clippedStart,
			ContinuesAfterThisWeek: weekEndIndex < endIndex || clippedEnd,
		})

		current = weekEndIndex + 1
		weekCount++
	}

	// A clipped side continues off-grid, so it never gets a rounded end.
	for i := range frags {
		roundStart := i == 0 && !clippedStart
		roundEnd := i == len(frags)-1 && !clippedEnd
		switch {
		case roundStart && roundEnd:
			frags[i].Border = BorderFull
		case roundStart:
			frags[i].Border = BorderStart
		case roundEnd:
			frags[i].Border = BorderEnd
		default:
			frags[i].Border = BorderMiddle
		}
	}
	return frags
}
