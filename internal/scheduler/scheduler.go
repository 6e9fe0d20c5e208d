package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds one run of a job.
const DefaultJobTimeout = 2 * time.Hour

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron       *cron.Cron
	jobs       map[string]cron.EntryID
	timezone   *time.Location
	jobTimeout time.Duration
	logger     *zap.Logger
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// New creates a new scheduler with the given timezone
func New(timezone string, logger *zap.Logger) (*Scheduler, error) {
	if timezone == "" {
		timezone = "Local"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	logger = logger.Named("scheduler")
	cl := cronLogger{s: logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		// A run that outlasts its interval is not started twice
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:       c,
		jobs:       make(map[string]cron.EntryID),
		timezone:   loc,
		jobTimeout: DefaultJobTimeout,
		logger:     logger,
	}, nil
}

// SetJobTimeout changes the timeout applied to jobs added afterwards.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	s.jobTimeout = d
}

// AddJob adds a job with a cron schedule
// schedule format: "0 */6 * * *" (every six hours)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	timeout := s.jobTimeout
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.run(name, timeout, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("Added job", zap.String("job", name), zap.String("schedule", schedule))

	return nil
}

// AddSessionJob schedules the bot run.
func (s *Scheduler) AddSessionJob(schedule string, job Job) error {
	return s.AddJob("session", schedule, job)
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Starting job", zap.String("job", name))
	start := time.Now()

	err := job(ctx)
	if err != nil {
		s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
	} else {
		s.logger.Info("Job completed", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
	return err
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("Removed job", zap.String("job", name))
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", zap.String("timezone", s.timezone.String()))
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job outside the schedule
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, s.jobTimeout, job)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}
