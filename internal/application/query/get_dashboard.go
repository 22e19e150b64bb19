package query

import (
	"context"
	"errors"
	"time"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/ranking"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Returns the three leader lists of the latest published generation.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery has no parameters.
type GetDashboardQuery struct{}

// GetDashboardResult is the board plus freshness information.
type GetDashboardResult struct {
	Board *ranking.Board `json:"board"`

	// Age is how long ago the board was generated, in seconds.
	AgeSeconds float64 `json:"age_seconds"`
}

// GetDashboardHandler serves the board.
type GetDashboardHandler struct {
	source SnapshotSource
	now    func() time.Time
}

// NewGetDashboardHandler creates the handler.
func NewGetDashboardHandler(source SnapshotSource) *GetDashboardHandler {
	return &GetDashboardHandler{source: source, now: time.Now}
}

// Handle returns the latest board, computing the first one on demand.
func (h *GetDashboardHandler) Handle(ctx context.Context, _ GetDashboardQuery) (*GetDashboardResult, error) {
	board, err := h.source.Board(ctx)
	if errors.Is(err, refresh.ErrNoBoard) {
		snap, rerr := loadSnapshot(ctx, h.source, "GetDashboard")
		if rerr != nil {
			return nil, rerr
		}
		board, err = snap.Board, nil
	}
	if err != nil {
		return nil, shared.WrapError("query", "GetDashboard", shared.ErrServiceUnavailable, "board unavailable", err)
	}
	if board == nil {
		return nil, shared.NewDomainError("query", "GetDashboard", shared.ErrServiceUnavailable, "board unavailable")
	}

	result := &GetDashboardResult{Board: board}
	if !board.GeneratedAt.IsZero() {
		result.AgeSeconds = h.now().Sub(board.GeneratedAt).Seconds()
	}
	return result, nil
}
