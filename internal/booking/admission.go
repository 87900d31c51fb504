package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// MaxPurposeLen bounds the free-text purpose of a reservation.
const MaxPurposeLen = 1000

// Request is a student's reservation request.  Window must equal the
// slot's window; Location defaults to the slot's location.
type Request struct {
	FacultyID  uint64       `json:"faculty_id"`
	OfferingID uint64       `json:"subject_id"`
	SlotID     uint64       `json:"slot_id"`
	Window     model.Window `json:"window"`
	Location   string       `json:"location,omitempty"`
	Purpose    string       `json:"purpose,omitempty"`
}

func (r *Request) validate() error {
	var missing []string
	if r.FacultyID == 0 {
		missing = append(missing, "faculty_id")
	}
	if r.OfferingID == 0 {
		missing = append(missing, "subject_id")
	}
	if r.SlotID == 0 {
		missing = append(missing, "slot_id")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	r.Location = strings.TrimSpace(r.Location)
	r.Purpose = strings.TrimSpace(r.Purpose)
	if len(r.Purpose) > MaxPurposeLen {
		return apperr.New(apperr.ErrValidation, "purpose exceeds %d characters", MaxPurposeLen)
	}
	return r.Window.Validate()
}

// admissionKey names the critical section shared by every request for the
// same subject and window.
func admissionKey(offeringID uint64, w model.Window) string {
	return fmt.Sprintf("admission:%d:%s:%d:%d", offeringID, w.Day, w.Start, w.End)
}

// RequestReservation admits or rejects a reservation request.  Checks run in
// order: validation, duplicate booking, capacity.  The last two and the
// insert are atomic per (subject, window): of concurrent requests for the
// last unit of capacity, the first to take the lock wins and the others get
// ErrCapacityExceeded.
func (e *Engine) RequestReservation(ctx context.Context, student model.Identity, req Request) (model.ReservationDetail, error) {
	if student.Role != model.RoleStudent {
		return model.ReservationDetail{}, apperr.New(apperr.ErrAuthorization, "only students can request consultations")
	}
	if err := req.validate(); err != nil {
		return model.ReservationDetail{}, err
	}
	slot, offering, err := e.resolveTarget(ctx, req)
	if err != nil {
		return model.ReservationDetail{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	release, err := e.locks.Acquire(lockCtx, admissionKey(offering.ID, slot.Window))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return model.ReservationDetail{}, apperr.Wrap(apperr.ErrDependency, ctx.Err(), "request cancelled")
		}
		return model.ReservationDetail{}, apperr.Wrap(apperr.ErrDependency, err, "slot is busy, retry the request")
	}
	defer release()

	now := e.now().UTC()
	res := model.Reservation{
		FacultyID:  slot.FacultyID,
		StudentID:  student.ID,
		OfferingID: offering.ID,
		SlotID:     slot.ID,
		Window:     slot.Window,
		Location:   req.Location,
		Section:    student.Section,
		Status:     model.StatusPending,
		Purpose:    req.Purpose,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if res.Location == "" {
		res.Location = slot.Location
	}
	if err := e.admit(ctx, &res); err != nil {
		return model.ReservationDetail{}, err
	}

	e.logger.Info("Consultation requested",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("student_id", res.StudentID),
		zap.Uint64("slot_id", res.SlotID),
		zap.String("window", res.Window.String()),
	)
	return e.detailOrFallback(ctx, res, offering, student), nil
}

// resolveTarget loads the slot and offering a request names and checks that
// they agree with it.
func (e *Engine) resolveTarget(ctx context.Context, req Request) (model.ScheduleSlot, model.Offering, error) {
	slot, err := e.slots.GetByID(ctx, req.SlotID)
	if err != nil {
		return model.ScheduleSlot{}, model.Offering{}, storeErr(err, "slot %d", req.SlotID)
	}
	if slot.OfferingID != req.OfferingID || slot.FacultyID != req.FacultyID {
		return model.ScheduleSlot{}, model.Offering{}, apperr.New(apperr.ErrValidation, "slot %d does not belong to the given faculty and subject", slot.ID)
	}
	if slot.Window != req.Window {
		return model.ScheduleSlot{}, model.Offering{}, apperr.New(apperr.ErrValidation, "window %s does not match slot window %s", req.Window, slot.Window)
	}
	offering, err := e.offerings.GetByID(ctx, req.OfferingID)
	if err != nil {
		return model.ScheduleSlot{}, model.Offering{}, storeErr(err, "subject %d", req.OfferingID)
	}
	if !offering.IsActive {
		return model.ScheduleSlot{}, model.Offering{}, apperr.New(apperr.ErrValidation, "subject %d is no longer offered", offering.ID)
	}
	return slot, offering, nil
}

// admit runs the duplicate check, the capacity check and the insert in one
// transaction.  The caller holds the admission lock.  Any store failure
// rolls back and surfaces as a retryable dependency error.
func (e *Engine) admit(ctx context.Context, res *model.Reservation) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-read capacity under the transaction; on MySQL this also row-locks
	// the slot against replicas that only hold a local lock.
	slot, err := e.slots.GetByIDTx(ctx, tx, res.SlotID, e.driver)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.ErrNotFound, "slot %d not found", res.SlotID)
	}
	if err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "read slot")
	}
	if slot.Window != res.Window {
		return apperr.New(apperr.ErrValidation, "slot %d changed while booking, retry the request", slot.ID)
	}

	dup, err := e.reservations.HasActiveForStudent(ctx, tx, res.StudentID, res.OfferingID, res.Window)
	if err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "check duplicate booking")
	}
	if dup {
		return apperr.New(apperr.ErrDuplicateBooking, "you already hold a reservation for %s", res.Window)
	}

	count, err := e.reservations.CountActive(ctx, tx, res.OfferingID, res.Window)
	if err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "count occupancy")
	}
	if count >= slot.MaxSlots {
		return apperr.New(apperr.ErrCapacityExceeded, "slot is fully booked (%d of %d)", count, slot.MaxSlots)
	}

	if err := e.reservations.CreateTx(ctx, tx, res); err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "store reservation")
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "commit reservation")
	}
	committed = true
	return nil
}

// detailOrFallback resolves display fields after commit.  The reservation
// exists at this point, so a failed lookup is logged and the detail is
// assembled from what the engine already knows.
func (e *Engine) detailOrFallback(ctx context.Context, res model.Reservation, o model.Offering, student model.Identity) model.ReservationDetail {
	d, err := e.reservations.GetDetail(ctx, res.ID)
	if err == nil {
		return d
	}
	e.logger.Warn("Reservation detail lookup failed", zap.Uint64("reservation_id", res.ID), zap.Error(err))
	return model.ReservationDetail{
		Reservation:  res,
		StudentName:  student.Name,
		StudentEmail: student.Email,
		SubjectCode:  o.Code,
		SubjectName:  o.Name,
	}
}
