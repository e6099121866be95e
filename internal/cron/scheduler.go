// Package cron runs the service's periodic maintenance: sweeping idle
// context-cache entries and pruning idle in-memory conversations.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is a periodic maintenance task. Name must be unique within a
// scheduler; Schedule is a standard 5-field cron expression.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// scheduleParser accepts standard 5-field cron expressions.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// entry pairs a registered job with its run lock. The lock guarantees a
// slow job never overlaps itself; ticks that arrive while the previous
// run is still going are skipped.
type entry struct {
	job     Job
	running sync.Mutex
}

// Scheduler executes maintenance jobs on cron schedules.
type Scheduler struct {
	mu      sync.Mutex
	runner  *cron.Cron
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger.With("component", "cron"),
	}
}

// RegisterJob adds a job. The schedule expression is validated here so a
// bad config fails before the service reports itself started. Duplicate
// names are rejected.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	if _, err := scheduleParser.Parse(j.Schedule()); err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
	}

	s.entries[name] = &entry{job: j}
	s.order = append(s.order, name)
	return nil
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.runner = cron.New(cron.WithParser(scheduleParser))

	for _, name := range s.order {
		e := s.entries[name]
		if _, err := s.runner.AddFunc(e.job.Schedule(), func() { s.tick(ctx, e) }); err != nil {
			cancel()
			return fmt.Errorf("cron: registering job %q: %w", name, err)
		}
	}

	s.runner.Start()
	s.logger.Info("scheduler started", "jobs", len(s.order))
	return nil
}

// tick runs one job invocation unless the previous one is still going.
func (s *Scheduler) tick(ctx context.Context, e *entry) {
	if !e.running.TryLock() {
		s.logger.Warn("job still running, skipping tick", "job", e.job.Name())
		return
	}
	defer e.running.Unlock()

	if err := e.job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", e.job.Name(), "error", err)
	}
}

// Stop shuts the scheduler down, waiting for in-flight jobs to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.runner != nil {
		<-s.runner.Stop().Done()
		s.logger.Info("scheduler stopped")
	}
	return nil
}
