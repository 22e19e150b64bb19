package command

import (
	"context"
	"log/slog"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
	"github.com/sms-hub/sms-dashboard/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE ATTENDANCE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAttendanceCommand sets one record's presence.
type UpdateAttendanceCommand struct {
	AttendanceID roster.AttendanceID
	Present      bool
}

// UpdateAttendanceResult is the stored record.
type UpdateAttendanceResult struct {
	ID         roster.AttendanceID `json:"id"`
	Date       timeutil.Date       `json:"date"`
	Present    bool                `json:"present"`
	Generation uint64              `json:"generation"`
}

// UpdateAttendanceHandler handles UpdateAttendanceCommand.
type UpdateAttendanceHandler struct {
	reader    roster.Reader
	writer    roster.Writer
	refresher Refresher
	logger    *slog.Logger
}

// NewUpdateAttendanceHandler creates the handler.
func NewUpdateAttendanceHandler(reader roster.Reader, writer roster.Writer, refresher Refresher, logger *slog.Logger) *UpdateAttendanceHandler {
	return &UpdateAttendanceHandler{reader: reader, writer: writer, refresher: refresher, logger: defaultLogger(logger)}
}

// Handle checks the record's owner, writes the record and refreshes the
// attendance view. Records of evicted students are read-only.
func (h *UpdateAttendanceHandler) Handle(ctx context.Context, cmd UpdateAttendanceCommand) (*UpdateAttendanceResult, error) {
	if cmd.AttendanceID <= 0 {
		return nil, shared.NewDomainError("command", "UpdateAttendance", shared.ErrValidation, "attendance id must be positive")
	}

	current, err := h.findRecord(ctx, cmd.AttendanceID)
	if err != nil {
		return nil, err
	}
	if current.Student != nil && current.Student.IsEvicted() {
		return nil, shared.WrapError("command", "UpdateAttendance", shared.ErrInvalidState,
			"cannot edit an evicted student's attendance", roster.ErrEvictedReadOnly)
	}

	rec, err := h.writer.SetAttendance(ctx, cmd.AttendanceID, cmd.Present)
	if err != nil {
		kind := shared.ErrExternalService
		if shared.IsNotFound(err) {
			kind = shared.ErrNotFound
		}
		return nil, shared.WrapError("command", "UpdateAttendance", kind, "failed to update attendance", err)
	}

	h.logger.Info("attendance updated",
		slog.Int64("attendance_id", int64(cmd.AttendanceID)),
		slog.Bool("present", rec.Present))

	return &UpdateAttendanceResult{
		ID:         rec.ID,
		Date:       rec.Date,
		Present:    rec.Present,
		Generation: republish(ctx, h.refresher, h.logger, refresh.ViewAttendance),
	}, nil
}

// findRecord reads the record fresh. The records service has no single-record
// endpoint, so the full list is scanned.
func (h *UpdateAttendanceHandler) findRecord(ctx context.Context, id roster.AttendanceID) (roster.AttendanceRecord, error) {
	records, err := h.reader.ListAttendance(ctx)
	if err != nil {
		return roster.AttendanceRecord{}, shared.WrapError("command", "UpdateAttendance", shared.ErrExternalService,
			"failed to load attendance", err)
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return roster.AttendanceRecord{}, shared.WrapError("command", "UpdateAttendance", shared.ErrNotFound,
		"attendance record not found", roster.ErrAttendanceNotFound)
}
