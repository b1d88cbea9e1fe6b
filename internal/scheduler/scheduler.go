// Package scheduler runs fetch batches on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules. A job that is still running
// when its next tick arrives is skipped, so batches never overlap.
type Scheduler struct {
	cron       *cron.Cron
	jobs       map[string]cron.EntryID
	schedules  map[string]string
	logger     *log.Logger
	jobTimeout time.Duration
	ctx        context.Context
}

// New creates a scheduler evaluating schedules in timezone ("Local", "UTC",
// or an IANA name). Jobs run under ctx and are bounded by jobTimeout when
// it is positive.
func New(ctx context.Context, timezone string, jobTimeout time.Duration, logger *log.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	logger = logger.WithPrefix("scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)

	return &Scheduler{
		cron:       c,
		jobs:       make(map[string]cron.EntryID),
		schedules:  make(map[string]string),
		logger:     logger,
		jobTimeout: jobTimeout,
		ctx:        ctx,
	}, nil
}

// AddJob registers job under name, replacing any job already registered
// under it. schedule is a standard five field cron spec or a descriptor such
// as "@hourly" or "@every 30m". An invalid schedule leaves the old job in place.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.RemoveJob(name)

	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, job); err != nil {
			s.logger.Error("job failed", "job", name, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.schedules[name] = schedule
	s.logger.Info("added job", "job", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := s.jobContext()
	defer cancel()

	s.logger.Info("starting job", "job", name)
	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Info("job completed", "job", name, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.jobTimeout > 0 {
		return context.WithTimeout(s.ctx, s.jobTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Scheduler) RemoveJob(name string) {
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		delete(s.schedules, name)
		s.logger.Info("removed job", "job", name)
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// RunNow executes job immediately, outside the schedule.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name     string
	Schedule string
	NextRun  time.Time
	LastRun  time.Time
}

func (s *Scheduler) ListJobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{Name: name, Schedule: s.schedules[name], NextRun: entry.Next, LastRun: entry.Prev})
	}
	return infos
}
