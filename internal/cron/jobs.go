package cron

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the subset of conversation.ContextCache needed by the
// sweep job. Defined here to avoid a dependency on the conversation
// package.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Pruner is the subset of conversation.Manager needed by the prune job.
type Pruner interface {
	PruneIdle(maxIdle time.Duration) int
}

// CacheSweepJob evicts context-cache entries untouched for longer than
// MaxIdle. TTL expiry already guarantees correctness on read; this job
// only bounds memory between reads.
type CacheSweepJob struct {
	Cache        Sweeper
	MaxIdle      time.Duration // 0 = cache default (multiples of the TTL)
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*CacheSweepJob)(nil)

// Name implements Job.
func (j *CacheSweepJob) Name() string { return "cache_sweep" }

// Schedule implements Job.
func (j *CacheSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run sweeps idle cache entries.
func (j *CacheSweepJob) Run(_ context.Context) error {
	evicted := j.Cache.Sweep(j.MaxIdle)
	if evicted > 0 {
		j.Logger.Info("cron: swept idle cache entries", "count", evicted)
	}
	return nil
}

// IdlePruneJob evicts in-memory conversations idle longer than MaxIdle.
// Durable records are untouched; a pruned conversation reloads from the
// store on next access.
type IdlePruneJob struct {
	Manager      Pruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default hourly
}

// Compile-time interface check.
var _ Job = (*IdlePruneJob)(nil)

// Name implements Job.
func (j *IdlePruneJob) Name() string { return "idle_prune" }

// Schedule implements Job.
func (j *IdlePruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run prunes conversations idle longer than MaxIdle.
func (j *IdlePruneJob) Run(_ context.Context) error {
	pruned := j.Manager.PruneIdle(j.MaxIdle)
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle conversations", "count", pruned)
	}
	return nil
}
