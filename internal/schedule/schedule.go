// Package schedule re-fetches the current week on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"weekcal/internal/extract"
	"weekcal/internal/isoweek"
	appLog "weekcal/internal/log"
)

// Fetcher is the part of *extract.Extractor the scheduler needs.
type Fetcher interface {
	Extract(ctx context.Context, req extract.Request) (*extract.Result, error)
}

// Scheduler runs one current-week extraction per cron tick. A tick that
// fires while the previous extraction is still running is skipped.
type Scheduler struct {
	fetcher Fetcher
	spec    string
	loc     *time.Location
	base    extract.Request
	now     func() time.Time
	log     *appLog.Logger
}

// New validates spec (standard 5-field cron) and returns a Scheduler. base
// supplies the calendar filters; its Start is replaced on every tick.
func New(fetcher Fetcher, spec string, loc *time.Location, base extract.Request, logger *appLog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = appLog.Discard()
	}
	return &Scheduler{
		fetcher: fetcher,
		spec:    spec,
		loc:     loc,
		base:    base,
		now:     time.Now,
		log:     logger,
	}, nil
}

// RunOnce fetches the week containing now.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	req := s.base
	req.Start = isoweek.StartOfWeek(s.now().In(s.loc))
	res, err := s.fetcher.Extract(ctx, req)
	if err != nil {
		s.log.Error("scheduled fetch failed", err, "start", req.Start.Format("2006-01-02"))
		return err
	}
	s.log.Info("scheduled fetch done", "week", res.Week.Week, "events", res.Week.Count)
	return nil
}

// Run fetches once immediately, then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cron.VerbosePrintfLogger(s.log)),
		cron.WithChain(cron.SkipIfStillRunning(cron.VerbosePrintfLogger(s.log))),
	)
	if _, err := c.AddFunc(s.spec, func() { _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule fetch: %w", err)
	}

	_ = s.RunOnce(ctx)

	c.Start()
	s.log.Info("scheduler started", "spec", s.spec, "zone", s.loc.String())
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
	return nil
}
