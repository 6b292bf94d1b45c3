package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monthcal/internal/model"
)

var kst = time.FixedZone("KST", 9*60*60)

var sampleICS = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//monthcal//test//EN",
	"BEGIN:VEVENT",
	"UID:standup",
	"DTSTART:20240304T000000Z",
	"DTEND:20240304T003000Z",
	"RRULE:FREQ=DAILY;COUNT=5",
	"EXDATE:20240306T000000Z",
	"SUMMARY:Standup",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:standup",
	"RECURRENCE-ID:20240305T000000Z",
	"DTSTART:20240305T010000Z",
	"DTEND:20240305T013000Z",
	"SUMMARY:Standup (moved)",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:trip",
	"DTSTART;VALUE=DATE:20240328",
	"DTEND;VALUE=DATE:20240403",
	"SUMMARY:Trip",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:holiday",
	"DTSTART;VALUE=DATE:20240301",
	"DTEND;VALUE=DATE:20240302",
	"SUMMARY:삼일절",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:cancelled",
	"DTSTART:20240310T000000Z",
	"DTEND:20240310T010000Z",
	"STATUS:CANCELLED",
	"SUMMARY:Nope",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

var testSource = Source{ID: "team", URL: "https://example.com/team.ics?token=secret", Group: "team", Color: "#3366ff"}

func marchWindow() ExpandConfig {
	return ExpandConfig{
		DisplayLocation: kst,
		RangeStart:      time.Date(2024, 3, 1, 0, 0, 0, 0, kst),
		RangeEnd:        time.Date(2024, 4, 30, 0, 0, 0, 0, kst),
	}
}

func TestParseICS_Sample(t *testing.T) {
	events, err := ParseICS(testSource, []byte(sampleICS))
	require.NoError(t, err)
	require.Len(t, events, 5)

	assert.Equal(t, "standup", events[0].UID)
	assert.Equal(t, "FREQ=DAILY;COUNT=5", events[0].RawRRule)
	require.Len(t, events[0].ExDates, 1)
	assert.False(t, events[0].AllDay)

	assert.True(t, events[1].IsOverride)
	require.NotNil(t, events[1].Recurrence)

	assert.True(t, events[2].AllDay)
	assert.True(t, events[4].Cancelled)
}

func TestParseICS_Empty(t *testing.T) {
	_, err := ParseICS(testSource, nil)
	assert.Error(t, err)
}

func TestExpandOccurrences_RecurrenceWithOverrideAndExdate(t *testing.T) {
	events, err := ParseICS(testSource, []byte(sampleICS))
	require.NoError(t, err)

	res, err := ExpandOccurrences(events, marchWindow())
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	var standups []Occurrence
	for _, o := range res.Occurrences {
		assert.NotEqual(t, "cancelled", o.UID)
		if o.UID == "standup" {
			standups = append(standups, o)
		}
	}
	require.Len(t, standups, 4)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, kst), standups[0].Start)
	assert.Equal(t, "Standup (moved)", standups[1].Summary)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, kst), standups[1].Start)
	assert.Equal(t, 7, standups[2].Start.Day())
	assert.Equal(t, 8, standups[3].Start.Day())
}

func TestExpandOccurrences_CapAndRangeValidation(t *testing.T) {
	events, err := ParseICS(testSource, []byte(sampleICS))
	require.NoError(t, err)

	cfg := marchWindow()
	cfg.MaxOccurrencesPerEvent = 2
	res, err := ExpandOccurrences(events, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"standup"}, res.TruncatedEvents)

	cfg.RangeEnd = cfg.RangeStart.Add(-time.Hour)
	_, err = ExpandOccurrences(events, cfg)
	assert.Error(t, err)
}

func TestToRecords_Kinds(t *testing.T) {
	events, err := ParseICS(testSource, []byte(sampleICS))
	require.NoError(t, err)
	res, err := ExpandOccurrences(events, marchWindow())
	require.NoError(t, err)

	records := ToRecords(res.Occurrences, kst)
	byTitle := map[string]model.Record{}
	for _, r := range records {
		byTitle[r.Title] = r
		assert.Equal(t, "team", r.GroupID)
		assert.Equal(t, "#3366ff", r.GroupColor)
	}

	assert.Equal(t, model.KindTimed, byTitle["Standup"].Kind)
	assert.Equal(t, "standup@2024-03-04T09:00:00+09:00", byTitle["Standup"].ID)

	trip := byTitle["Trip"]
	assert.Equal(t, model.KindMultiDay, trip.Kind)
	end, ok := trip.EndedAt.Time(kst)
	require.True(t, ok)
	assert.Equal(t, 2, end.Day())
	assert.Equal(t, time.April, end.Month())

	assert.Equal(t, model.KindDay, byTitle["삼일절"].Kind)
}

func TestToRecords_OvernightAndMissingUID(t *testing.T) {
	occs := []Occurrence{
		{UID: "late", InstanceKey: "k", Start: time.Date(2024, 3, 5, 23, 0, 0, 0, kst), End: time.Date(2024, 3, 6, 1, 0, 0, 0, kst)},
		{UID: "midnight", InstanceKey: "k", Start: time.Date(2024, 3, 5, 23, 0, 0, 0, kst), End: time.Date(2024, 3, 6, 0, 0, 0, 0, kst)},
		{UID: "", Start: time.Date(2024, 3, 5, 9, 0, 0, 0, kst), End: time.Date(2024, 3, 5, 8, 0, 0, 0, kst)},
	}
	records := ToRecords(occs, kst)

	assert.Equal(t, model.KindMultiDay, records[0].Kind)
	assert.Equal(t, model.KindTimed, records[1].Kind)
	assert.Equal(t, model.KindTimed, records[2].Kind)
	assert.Equal(t, records[2].StartedAt, records[2].EndedAt)
	assert.Len(t, records[2].ID, 36)
}

func TestFetcher_ETagCacheAndFallback(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	src := Source{ID: "team", URL: srv.URL + "/team.ics", Group: "team"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)

	failing.Store(true)
	third, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)

	results, errs := f.FetchAll(context.Background(), []Source{src, {ID: "empty"}})
	assert.Len(t, results, 1)
	assert.Len(t, errs, 1)
	assert.EqualValues(t, 4, calls.Load())
}

func TestFetcher_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.ics")
	require.NoError(t, os.WriteFile(path, []byte(sampleICS), 0o600))

	f := NewFetcher(t.TempDir())
	res, err := f.FetchOne(context.Background(), Source{ID: "local", URL: "file://" + path})
	require.NoError(t, err)
	assert.Equal(t, sampleICS, string(res.Body))

	_, err = f.FetchOne(context.Background(), Source{ID: "missing", URL: filepath.Join(t.TempDir(), "nope.ics")})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL(testSource.URL))
	assert.Equal(t, "ics://...(redacted)", redactURL("/etc/cal.ics"))
}
