package calendar

import (
	"sort"
	"strings"
	"time"

	"monthcal/internal/model"
)

const (
	DefaultTimeZone   = "Asia/Seoul"
	DefaultTimeLayout = "15:04"
)

// GroupSet is the set of visible group ids. A nil or empty set hides every
// record.
type GroupSet map[string]struct{}

// NewGroupSet builds a set from ids, skipping blanks.
func NewGroupSet(ids ...string) GroupSet {
	s := make(GroupSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

func (s GroupSet) Has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s GroupSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Event is a record resolved to civil dates. It is rebuilt on every layout
// pass and never persisted.
type Event struct {
	SourceID     string     `json:"sourceId"`
	GroupID      string     `json:"groupId"`
	GroupColor   string     `json:"groupColor,omitempty"`
	Kind         model.Kind `json:"kind"`
	StartDate    CivilDate  `json:"startDate"`
	EndDate      CivilDate  `json:"endDate"`
	IsMultiDay   bool       `json:"isMultiDay"`
	LinePosition int        `json:"linePosition"`
	DisplayText  string     `json:"displayText"`
	TimeText     string     `json:"timeText,omitempty"`
	// Hidden is set when the line cap pushed the event into the overflow count.
	Hidden bool `json:"hidden,omitempty"`
}

// Dates returns every civil date the event covers.
func (e Event) Dates() []CivilDate {
	return DateRange(e.StartDate, e.EndDate)
}

// ClassifyOptions controls date resolution and time formatting.
type ClassifyOptions struct {
	// Location is the fixed civil zone. If nil, Asia/Seoul is loaded, and
	// UTC is used if that fails.
	Location *time.Location
	// TimeLayout formats the start clock of TIMED records. Default "15:04".
	TimeLayout string
}

// ClassifyResult holds the normalized events plus the ids of records that
// were dropped for bad timestamps, for the caller to log.
type ClassifyResult struct {
	Events  []Event
	Dropped []string
}

type datedRecord struct {
	rec       model.Record
	startDate CivilDate
	endDate   CivilDate
}

// Classify filters records by active group, drops records with unusable
// timestamps, sorts by start (stable) and resolves civil dates.
func Classify(records []model.Record, active GroupSet, opts ClassifyOptions) ClassifyResult {
	loc := opts.Location
	if loc == nil {
		loc = defaultLocation()
	}
	layout := opts.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	var res ClassifyResult
	kept := make([]datedRecord, 0, len(records))
	for _, r := range records {
		if !active.Has(r.GroupID) {
			continue
		}
		startDate, okStart := DateFromMillis(r.StartedAt, loc)
		endDate, okEnd := DateFromMillis(r.EndedAt, loc)
		if !okStart || !okEnd {
			res.Dropped = append(res.Dropped, r.ID)
			continue
		}
		kept = append(kept, datedRecord{rec: r, startDate: startDate, endDate: endDate})
	}

	// Raw epoch-ms, fraction included; equal starts keep input order.
	sort.SliceStable(kept, func(i, j int) bool {
		return float64(kept[i].rec.StartedAt) < float64(kept[j].rec.StartedAt)
	})

	res.Events = make([]Event, 0, len(kept))
	for _, k := range kept {
		res.Events = append(res.Events, toEvent(k, loc, layout))
	}
	return res
}

func toEvent(k datedRecord, loc *time.Location, layout string) Event {
	endDate := k.endDate
	if endDate.Before(k.startDate) {
		endDate = k.startDate
	}

	ev := Event{
		SourceID:   k.rec.ID,
		GroupID:    k.rec.GroupID,
		GroupColor: k.rec.GroupColor,
		Kind:       k.rec.Kind,
		StartDate:  k.startDate,
		EndDate:    endDate,
		IsMultiDay: k.startDate != endDate,
	}

	switch k.rec.Kind {
	case model.KindTimed:
		// Valid already checked by DateFromMillis.
		start, _ := k.rec.StartedAt.Time(loc)
		ev.TimeText = start.Format(layout)
	case model.KindDay, model.KindMultiDay:
	}

	if ev.TimeText != "" {
		ev.DisplayText = ev.TimeText + " " + k.rec.Title
	} else {
		ev.DisplayText = k.rec.Title
	}
	return ev
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
