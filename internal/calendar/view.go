package calendar

import (
	"sort"
	"time"

	"monthcal/internal/model"
)

// Input is everything the data layer hands to the layout pipeline.
type Input struct {
	Records      []model.Record
	ActiveGroups GroupSet
	Year         int
	// MonthIndex is zero-based (0 = January).
	MonthIndex int
}

// Options is the fixed configuration of the pipeline.
type Options struct {
	Location        *time.Location
	WeekStart       time.Weekday
	TimeLayout      string
	Policy          LinePolicy
	MaxVisibleLines int
}

// ViewModel is the laid-out month handed to a renderer.
type ViewModel struct {
	Year              int                   `json:"year"`
	MonthIndex        int                   `json:"monthIndex"`
	Grid              []Day                 `json:"grid"`
	SingleDayEvents   map[CivilDate][]Event `json:"singleDayEventsByDate"`
	MultiDayFragments []Fragment            `json:"multiDayFragments"`
	Overflow          map[CivilDate]int     `json:"overflowByDate,omitempty"`
	Dropped           []string              `json:"dropped,omitempty"`
}

// Build runs the full pipeline: grid, classification, line assignment,
// week segmentation and per-date bucketing.
func Build(in Input, opts Options) ViewModel {
	// time.Date normalizes the month so that Year/MonthIndex are canonical.
	first := time.Date(in.Year, time.Month(in.MonthIndex+1), 1, 0, 0, 0, 0, time.UTC)
	grid := BuildGrid(first.Year(), int(first.Month())-1, opts.WeekStart)

	classified := Classify(in.Records, in.ActiveGroups, ClassifyOptions{
		Location:   opts.Location,
		TimeLayout: opts.TimeLayout,
	})
	lines := AssignLines(classified.Events, LineOptions{
		Policy:     opts.Policy,
		MaxVisible: opts.MaxVisibleLines,
	})

	vm := ViewModel{
		Year:              first.Year(),
		MonthIndex:        int(first.Month()) - 1,
		Grid:              grid,
		SingleDayEvents:   make(map[CivilDate][]Event),
		MultiDayFragments: Segment(lines.Events, grid),
		Overflow:          make(map[CivilDate]int),
		Dropped:           classified.Dropped,
	}
	if vm.MultiDayFragments == nil {
		vm.MultiDayFragments = []Fragment{}
	}

	index := IndexGrid(grid)
	for _, ev := range lines.Events {
		if ev.IsMultiDay || ev.Hidden {
			continue
		}
		if _, ok := index[ev.StartDate]; !ok {
			continue
		}
		vm.SingleDayEvents[ev.StartDate] = append(vm.SingleDayEvents[ev.StartDate], ev)
	}
	for d, evs := range vm.SingleDayEvents {
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].LinePosition < evs[j].LinePosition })
		vm.SingleDayEvents[d] = evs
	}
	for d, n := range lines.Overflow {
		if _, ok := index[d]; ok {
			vm.Overflow[d] = n
		}
	}
	return vm
}

// EventsOn returns the single-day events anchored at d, in line order.
func (vm ViewModel) EventsOn(d CivilDate) []Event {
	return vm.SingleDayEvents[d]
}

// FragmentsInRow returns the multi-day fragments drawn in grid row r.
func (vm ViewModel) FragmentsInRow(r int) []Fragment {
	var out []Fragment
	for _, f := range vm.MultiDayFragments {
		if f.Row == r {
			out = append(out, f)
		}
	}
	return out
}
