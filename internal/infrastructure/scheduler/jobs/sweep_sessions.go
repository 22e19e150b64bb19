package jobs

import (
	"context"
)

// Sweeper closes idle edit sessions and reports how many expired.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// SweepSessionsJob expires idle edit sessions so their lock is freed
// even when no request touches the manager.
type SweepSessionsJob struct {
	sweeper Sweeper
}

// NewSweepSessionsJob creates the job.
func NewSweepSessionsJob(sweeper Sweeper) *SweepSessionsJob {
	return &SweepSessionsJob{sweeper: sweeper}
}

// Name returns the job name.
func (j *SweepSessionsJob) Name() string { return "sweep_sessions" }

// Description returns a human-readable description.
func (j *SweepSessionsJob) Description() string {
	return "Closes idle edit sessions and releases their edit lock"
}

// Run sweeps once.
func (j *SweepSessionsJob) Run(ctx context.Context) error {
	j.sweeper.Sweep(ctx)
	return nil
}
