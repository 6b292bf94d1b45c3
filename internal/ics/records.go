package ics

import (
	"time"

	"github.com/google/uuid"

	"monthcal/internal/model"
)

// ToRecords converts occurrences into layout records.
//
// All-day occurrences become DAY (one date) or MULTI_DAY. Timed occurrences
// are TIMED unless they cross midnight in loc, in which case they are
// MULTI_DAY.
//
// Record ids are "<uid>@<instance key>" so recurring instances stay distinct
// across refreshes. Events without a UID get a random id.
func ToRecords(occs []Occurrence, loc *time.Location) []model.Record {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]model.Record, 0, len(occs))
	for _, o := range occs {
		start, end := o.Start, o.End
		// Ends are exclusive; step back so an end at midnight stays on the
		// previous date.
		if end.After(start) {
			end = end.Add(-time.Millisecond)
		} else {
			end = start
		}

		var kind model.Kind
		if o.AllDay {
			kind = model.KindDay
			if !sameDate(start, end, loc) {
				kind = model.KindMultiDay
			}
		} else {
			kind = model.KindTimed
			if !sameDate(start, end, loc) {
				kind = model.KindMultiDay
			}
		}

		id := o.UID + "@" + o.InstanceKey
		if o.UID == "" {
			id = uuid.NewString()
		}

		out = append(out, model.Record{
			ID:         id,
			StartedAt:  model.MillisOf(start),
			EndedAt:    model.MillisOf(end),
			Kind:       kind,
			Title:      o.Summary,
			GroupID:    o.Source.Group,
			GroupColor: o.Source.Color,
		})
	}
	return out
}

func sameDate(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
