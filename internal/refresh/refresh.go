// Package refresh pulls ICS sources into the store, once or on a cron
// schedule.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"monthcal/internal/ics"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
	"monthcal/internal/records"
	"monthcal/internal/store"
)

// Syncer copies expanded ICS occurrences into the record store.
type Syncer struct {
	Fetcher        *ics.Fetcher
	Sources        []ics.Source
	Records        *store.RecordRepo
	Groups         *store.GroupRepo
	Location       *time.Location
	MaxOccurrences int

	// KnownGroups are upserted on every sync so the store mirrors the config.
	KnownGroups []model.Group
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Groups  int
	Records int
}

// SyncWindow fetches every source and replaces the rows of each group with
// the occurrences inside [from, to]. A group is only replaced when all of its
// sources produced a body; otherwise its previous rows are kept.
func (s *Syncer) SyncWindow(ctx context.Context, from, to time.Time) (SyncResult, error) {
	var res SyncResult

	if s.Groups != nil {
		for _, g := range s.KnownGroups {
			if err := s.Groups.Upsert(ctx, g); err != nil {
				return res, err
			}
		}
	}

	bySource := make(map[string][]ics.Source)
	var order []string
	for _, src := range s.Sources {
		if _, ok := bySource[src.Group]; !ok {
			order = append(order, src.Group)
		}
		bySource[src.Group] = append(bySource[src.Group], src)
	}

	for _, group := range order {
		sources := bySource[group]
		fetched, errs := s.Fetcher.FetchAll(ctx, sources)
		if len(errs) > 0 {
			appLog.Info("keeping previous rows for group", "group", group, "failed_sources", len(errs))
			continue
		}

		var parsed []ics.ParsedEvent
		parseFailed := false
		for _, fr := range fetched {
			events, err := ics.ParseICS(fr.Source, fr.Body)
			if err != nil {
				appLog.Error("ics parse failed", err, "id", fr.Source.ID, "group", group)
				parseFailed = true
				break
			}
			parsed = append(parsed, events...)
		}
		if parseFailed {
			continue
		}

		expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
			DisplayLocation:        s.Location,
			RangeStart:             from,
			RangeEnd:               to,
			MaxOccurrencesPerEvent: s.MaxOccurrences,
		})
		if err != nil {
			return res, fmt.Errorf("expanding group %s: %w", group, err)
		}

		recs := ics.ToRecords(expanded.Occurrences, s.Location)
		if err := s.Records.ReplaceGroup(ctx, group, recs); err != nil {
			return res, err
		}
		appLog.Info("group synced", "group", group, "records", len(recs))
		res.Groups++
		res.Records += len(recs)
	}
	return res, nil
}

// DefaultWindow spans the grids of the previous, current and next month
// around now, so paging one month either way never hits an unsynced range.
func DefaultWindow(now time.Time, weekStart time.Weekday, loc *time.Location) (from, to time.Time) {
	now = now.In(loc)
	monthIndex := int(now.Month()) - 1
	from, _ = records.Window(now.Year(), monthIndex-1, weekStart, loc)
	_, to = records.Window(now.Year(), monthIndex+1, weekStart, loc)
	return from, to
}

// Scheduler runs a job on a cron spec in a fixed location.
type Scheduler struct {
	cron *cron.Cron
	job  func(context.Context)

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five fields or descriptors like
// "@every 15m") and binds job to it.
func NewScheduler(spec string, loc *time.Location, job func(context.Context)) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		job:  job,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.job(ctx)
}

// Start begins firing the job. It stops when ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	s.cron.Start()
	go func() {
		<-runCtx.Done()
		s.cron.Stop()
	}()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}
