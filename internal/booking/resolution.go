package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/notify"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// SetStatus moves a reservation through the state machine on behalf of its
// faculty member or an administrator.  Approval and completion stamp their
// timestamps.  Approval and rejection notify the student asynchronously;
// the returned reservation never depends on notification outcome.
func (e *Engine) SetStatus(ctx context.Context, actor model.Identity, id uint64, status string) (model.ReservationDetail, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ReservationDetail{}, apperr.Wrap(apperr.ErrDependency, err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := e.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return model.ReservationDetail{}, storeErr(err, "reservation %d", id)
	}
	if !canResolve(actor, res) {
		return model.ReservationDetail{}, apperr.New(apperr.ErrAuthorization, "only the assigned faculty or an administrator may resolve this reservation")
	}
	next, ok := model.ParseStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return model.ReservationDetail{}, apperr.New(apperr.ErrValidation, "unknown status %q", status)
	}
	if !res.Status.CanTransitionTo(next) {
		return model.ReservationDetail{}, apperr.New(apperr.ErrInvalidTransition, "cannot move a %s reservation to %s", res.Status, next)
	}

	now := e.now().UTC()
	var approvedAt, completedAt *time.Time
	switch next {
	case model.StatusApproved:
		approvedAt = &now
	case model.StatusCompleted:
		completedAt = &now
	}
	err = e.reservations.UpdateStatusTx(ctx, tx, id, res.Status, next, approvedAt, completedAt, now)
	if errors.Is(err, repository.ErrConflict) {
		return model.ReservationDetail{}, apperr.New(apperr.ErrInvalidTransition, "reservation %d changed concurrently", id)
	}
	if err != nil {
		return model.ReservationDetail{}, apperr.Wrap(apperr.ErrDependency, err, "update status")
	}
	if err := tx.Commit(); err != nil {
		return model.ReservationDetail{}, apperr.Wrap(apperr.ErrDependency, err, "commit status")
	}
	committed = true

	e.logger.Info("Consultation status changed",
		zap.Uint64("reservation_id", id),
		zap.Uint64("actor_id", actor.ID),
		zap.String("from", string(res.Status)),
		zap.String("to", string(next)),
	)

	d, err := e.reservations.GetDetail(ctx, id)
	if err != nil {
		// Committed; report what we know rather than an error.
		e.logger.Warn("Reservation detail lookup failed", zap.Uint64("reservation_id", id), zap.Error(err))
		res.Status, res.IsRead, res.UpdatedAt = next, false, now
		if approvedAt != nil {
			res.ApprovedAt = approvedAt
		}
		if completedAt != nil {
			res.CompletedAt = completedAt
		}
		d = model.ReservationDetail{Reservation: res}
	}
	if next.Notifies() {
		e.notifier.Dispatch(notify.EventFor(d, now))
	}
	return d, nil
}

// SetPurpose replaces the purpose text.  The same actors as SetStatus may
// edit it, in any status.
func (e *Engine) SetPurpose(ctx context.Context, actor model.Identity, id uint64, purpose string) (model.ReservationDetail, error) {
	purpose = strings.TrimSpace(purpose)
	if len(purpose) > MaxPurposeLen {
		return model.ReservationDetail{}, apperr.New(apperr.ErrValidation, "purpose exceeds %d characters", MaxPurposeLen)
	}
	res, err := e.reservations.GetByID(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, storeErr(err, "reservation %d", id)
	}
	if !canResolve(actor, res) {
		return model.ReservationDetail{}, apperr.New(apperr.ErrAuthorization, "only the assigned faculty or an administrator may edit the purpose")
	}
	if err := e.reservations.UpdatePurpose(ctx, id, purpose, e.now().UTC()); err != nil {
		return model.ReservationDetail{}, storeErr(err, "reservation %d", id)
	}
	d, err := e.reservations.GetDetail(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, storeErr(err, "reservation %d", id)
	}
	return d, nil
}
