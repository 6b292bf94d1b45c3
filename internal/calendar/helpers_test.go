package calendar

import (
	"time"

	"monthcal/internal/model"
)

var kst = time.FixedZone("KST", 9*60*60)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, kst)
}

func record(id string, kind model.Kind, start, end time.Time, group string) model.Record {
	return model.Record{
		ID:        id,
		StartedAt: model.MillisOf(start),
		EndedAt:   model.MillisOf(end),
		Kind:      kind,
		Title:     "title-" + id,
		GroupID:   group,
	}
}

func dayRecord(id string, day time.Time, group string) model.Record {
	return record(id, model.KindDay, day, day.Add(time.Hour), group)
}

func testOptions() Options {
	return Options{
		Location:   kst,
		WeekStart:  time.Sunday,
		TimeLayout: DefaultTimeLayout,
		Policy:     PolicyReserve,
	}
}

func sourceIDs(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.SourceID)
	}
	return out
}
