// Package command contains write operations (CQRS - Commands).
// Commands send mutations to the records service, then ask the refresh
// service to republish the views the mutation touched.
package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Refresher republishes dashboard views. Implemented by refresh.Service.
type Refresher interface {
	Refresh(ctx context.Context, views ...refresh.View) (*refresh.Snapshot, error)
}

// EditLock keeps a single edit session across every replica.
// Implemented by the Redis edit lock.
type EditLock interface {
	// Acquire takes the lock for owner. It reports false when another owner holds it.
	Acquire(ctx context.Context, owner string) (bool, error)

	// Extend pushes the expiry of a lock owner still holds.
	Extend(ctx context.Context, owner string) error

	// Release drops the lock if owner holds it.
	Release(ctx context.Context, owner string) error
}

// ErrLockHeldElsewhere is returned when another replica holds the edit lock.
var ErrLockHeldElsewhere = shared.NewDomainError("command", "OpenSession", shared.ErrConflict,
	"an edit session is open on another dashboard instance")

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// newValidator returns a validator with the notblank tag registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validationError flattens validator output into one DomainError.
func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrValidation, err.Error(), err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
	}
	return shared.WrapError("command", op, shared.ErrValidation, strings.Join(parts, "; "), err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "notblank", "required":
		return field + " must not be blank"
	case "len":
		return field + " must have exactly " + fe.Param() + " items"
	case "email":
		return field + " must be an email address"
	case "max":
		return field + " is too long"
	case "unique":
		return field + " must not repeat"
	default:
		return field + " is invalid (" + fe.Tag() + ")"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// republish asks for the given views. A lost race against a newer refresh is
// not a failure. Other errors are logged: the mutation already succeeded.
func republish(ctx context.Context, r Refresher, logger *slog.Logger, views ...refresh.View) uint64 {
	if r == nil {
		return 0
	}
	snap, err := r.Refresh(ctx, views...)
	if err != nil && !errors.Is(err, refresh.ErrStaleRefresh) {
		logger.Warn("refresh after mutation failed", slog.String("error", err.Error()))
	}
	if snap == nil || snap.Board == nil {
		return 0
	}
	return snap.Board.Generation
}

// releaseLock frees the distributed lock of an edit session, if any.
func releaseLock(ctx context.Context, lock EditLock, logger *slog.Logger, s *editsession.Session) {
	if lock == nil || s == nil || s.Mode() != editsession.ModeEdit {
		return
	}
	if err := lock.Release(ctx, string(s.ID())); err != nil {
		logger.Warn("edit lock release failed",
			slog.String("session_id", string(s.ID())),
			slog.String("error", err.Error()))
	}
}

func defaultLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func defaultClock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
