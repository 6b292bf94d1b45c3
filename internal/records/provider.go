// Package records supplies the raw records for a month. Providers differ only
// in where the records come from; the layout pipeline treats them alike.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"monthcal/internal/calendar"
	"monthcal/internal/ics"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
	"monthcal/internal/store"
)

// Provider returns the records that may touch the window [from, to].
// Providers may return extra records; the classifier filters them.
type Provider interface {
	Records(ctx context.Context, from, to time.Time) ([]model.Record, error)
}

// MonthLayout is the YYYY-MM form months take in URLs and flags.
const MonthLayout = "2006-01"

// ParseMonth parses YYYY-MM into a year and a zero-based month index.
// An empty value means the month of now.
func ParseMonth(v string, now time.Time) (year, monthIndex int, err error) {
	if v == "" {
		return now.Year(), int(now.Month()) - 1, nil
	}
	t, err := time.Parse(MonthLayout, v)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", v)
	}
	return t.Year(), int(t.Month()) - 1, nil
}

// Window returns the instants spanned by the month grid in loc: midnight of
// the first cell through the last millisecond of the last cell.
func Window(year, monthIndex int, weekStart time.Weekday, loc *time.Location) (from, to time.Time) {
	grid := calendar.BuildGrid(year, monthIndex, weekStart)
	from = grid[0].ID.Midnight(loc)
	to = grid[len(grid)-1].ID.AddDays(1).Midnight(loc).Add(-time.Millisecond)
	return from, to
}

// StoreProvider reads records from the SQLite store.
type StoreProvider struct {
	Repo *store.RecordRepo
}

func NewStoreProvider(repo *store.RecordRepo) *StoreProvider {
	return &StoreProvider{Repo: repo}
}

func (p *StoreProvider) Records(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	return p.Repo.ListBetween(ctx, from, to)
}

// ICSProvider fetches, parses and expands ICS sources on every call. Used for
// live previews without a database.
type ICSProvider struct {
	Fetcher        *ics.Fetcher
	Sources        []ics.Source
	Location       *time.Location
	MaxOccurrences int
}

func (p *ICSProvider) Records(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	occs, err := Occurrences(ctx, p.Fetcher, p.Sources, ics.ExpandConfig{
		DisplayLocation:        p.Location,
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerEvent: p.MaxOccurrences,
	})
	if err != nil {
		return nil, err
	}
	return ics.ToRecords(occs, p.Location), nil
}

// Occurrences runs fetch, parse and expand for sources. Sources that fail to
// fetch or parse are logged and skipped.
func Occurrences(ctx context.Context, f *ics.Fetcher, sources []ics.Source, cfg ics.ExpandConfig) ([]ics.Occurrence, error) {
	results, errs := f.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Info("some ics sources were skipped", "failed", len(errs), "ok", len(results))
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ics.ExpandOccurrences(parsed, cfg)
	if err != nil {
		return nil, fmt.Errorf("expanding occurrences: %w", err)
	}
	if len(expanded.TruncatedEvents) > 0 {
		appLog.Info("recurrence expansion truncated", "uids", expanded.TruncatedEvents)
	}
	return expanded.Occurrences, nil
}

// FileProvider reads a JSON array of records from disk. Elements that fail to
// decode (an unknown kind, say) are logged and skipped so one bad row does not
// hide the month.
type FileProvider struct {
	Path string
}

func (p *FileProvider) Records(_ context.Context, _, _ time.Time) ([]model.Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	return DecodeRecords(data)
}

// DecodeRecords decodes a JSON array of records element by element.
func DecodeRecords(data []byte) ([]model.Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	out := make([]model.Record, 0, len(raw))
	for i, msg := range raw {
		var rec model.Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			appLog.Error("skipping undecodable record", err, "index", i)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
