package command

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH DASHBOARD COMMAND
// Operator-triggered refresh, also run by the scheduler.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshDashboardCommand names the views to refresh. Empty means all.
type RefreshDashboardCommand struct {
	Views []string
}

// Validate rejects unknown views.
func (c RefreshDashboardCommand) Validate() error {
	for _, v := range c.Views {
		if !slices.Contains(refresh.DataViews, refresh.View(v)) {
			return shared.NewDomainError("command", "RefreshDashboard", shared.ErrInvalidInput,
				"unknown view "+v+", expected students, attendance or marks")
		}
	}
	return nil
}

// RefreshDashboardResult summarises the published snapshot.
type RefreshDashboardResult struct {
	Generation uint64    `json:"generation"`
	TakenAt    time.Time `json:"taken_at"`
	Students   int       `json:"students"`
	Degraded   []string  `json:"degraded,omitempty"`

	// Stale is set when a concurrent refresh published newer data first.
	Stale bool `json:"stale,omitempty"`
}

// RefreshDashboardHandler handles RefreshDashboardCommand.
type RefreshDashboardHandler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewRefreshDashboardHandler creates the handler.
func NewRefreshDashboardHandler(refresher Refresher, logger *slog.Logger) *RefreshDashboardHandler {
	return &RefreshDashboardHandler{refresher: refresher, logger: defaultLogger(logger)}
}

// Handle runs one refresh.
func (h *RefreshDashboardHandler) Handle(ctx context.Context, cmd RefreshDashboardCommand) (*RefreshDashboardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("command", "RefreshDashboard", shared.ErrValidation, err.Error(), err)
	}

	views := make([]refresh.View, len(cmd.Views))
	for i, v := range cmd.Views {
		views[i] = refresh.View(v)
	}

	snap, err := h.refresher.Refresh(ctx, views...)
	stale := errors.Is(err, refresh.ErrStaleRefresh)
	if err != nil && !stale {
		return nil, shared.WrapError("command", "RefreshDashboard", shared.ErrServiceUnavailable, "refresh failed", err)
	}

	result := &RefreshDashboardResult{Stale: stale}
	if snap != nil {
		result.TakenAt = snap.TakenAt
		result.Students = len(snap.Students)
		result.Degraded = snap.Degraded
		if snap.Board != nil {
			result.Generation = snap.Board.Generation
		}
	}
	return result, nil
}
