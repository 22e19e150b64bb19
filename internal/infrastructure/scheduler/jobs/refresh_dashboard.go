// Package jobs contains the dashboard's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH DASHBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshDashboardJobName names the refresh job in the scheduler.
const RefreshDashboardJobName = "refresh_dashboard"

// Refresher runs one dashboard refresh.
type Refresher interface {
	Handle(ctx context.Context, cmd command.RefreshDashboardCommand) (*command.RefreshDashboardResult, error)
}

// RefreshDashboardJob refetches every view and republishes the board.
type RefreshDashboardJob struct {
	refresher Refresher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRefreshDashboardJob creates the job. A non-positive timeout means none.
func NewRefreshDashboardJob(refresher Refresher, timeout time.Duration, logger *slog.Logger) *RefreshDashboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshDashboardJob{refresher: refresher, timeout: timeout, logger: logger}
}

// Name returns the job name.
func (j *RefreshDashboardJob) Name() string { return RefreshDashboardJobName }

// Description returns a human-readable description.
func (j *RefreshDashboardJob) Description() string {
	return "Refetches students, attendance and marks and republishes the board"
}

// Run executes one refresh. Degraded slices are logged, not failed.
func (j *RefreshDashboardJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.refresher.Handle(ctx, command.RefreshDashboardCommand{})
	if err != nil {
		return fmt.Errorf("refresh dashboard: %w", err)
	}

	attrs := []any{
		slog.Uint64("generation", res.Generation),
		slog.Int("students", res.Students),
	}
	if res.Stale {
		j.logger.Debug("scheduled refresh superseded", attrs...)
		return nil
	}
	if len(res.Degraded) > 0 {
		j.logger.Warn("scheduled refresh degraded", append(attrs, slog.Any("degraded", res.Degraded))...)
		return nil
	}
	j.logger.Debug("scheduled refresh published", attrs...)
	return nil
}
