package booking

import (
	"context"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// Page is one page of a paginated listing.
type Page struct {
	Items []model.ReservationDetail `json:"items"`
	Total int                       `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}

// GetReservation returns a reservation to its student, its faculty member
// or an administrator.
func (e *Engine) GetReservation(ctx context.Context, actor model.Identity, id uint64) (model.ReservationDetail, error) {
	d, err := e.reservations.GetDetail(ctx, id)
	if err != nil {
		return model.ReservationDetail{}, storeErr(err, "reservation %d", id)
	}
	if !canView(actor, d.Reservation) {
		return model.ReservationDetail{}, apperr.New(apperr.ErrAuthorization, "not permitted to view reservation %d", id)
	}
	return d, nil
}

// ListForFaculty pages through the reservations assigned to facultyID.
// page is 1-based.
func (e *Engine) ListForFaculty(ctx context.Context, actor model.Identity, facultyID uint64, page, limit int) (Page, error) {
	if !actor.IsAdmin() && !(actor.Role == model.RoleFaculty && actor.ID == facultyID) {
		return Page{}, apperr.New(apperr.ErrAuthorization, "not permitted to list reservations of faculty %d", facultyID)
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	items, total, err := e.reservations.ListByFaculty(ctx, facultyID, limit, (page-1)*limit)
	if err != nil {
		return Page{}, storeErr(err, "reservations")
	}
	return Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// ListForStudent lists a student's reservations to that student or an
// administrator.
func (e *Engine) ListForStudent(ctx context.Context, actor model.Identity, studentID uint64) ([]model.ReservationDetail, error) {
	if !actor.IsAdmin() && actor.ID != studentID {
		return nil, apperr.New(apperr.ErrAuthorization, "not permitted to list reservations of student %d", studentID)
	}
	items, err := e.reservations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storeErr(err, "reservations")
	}
	return items, nil
}

// ListForSection lists reservations captured for a section.  Faculty see
// only reservations assigned to them; administrators see all.
func (e *Engine) ListForSection(ctx context.Context, actor model.Identity, section string) ([]model.ReservationDetail, error) {
	if section == "" {
		return nil, apperr.New(apperr.ErrValidation, "section is required")
	}
	var facultyID uint64
	switch {
	case actor.IsAdmin():
	case actor.Role == model.RoleFaculty:
		facultyID = actor.ID
	default:
		return nil, apperr.New(apperr.ErrAuthorization, "not permitted to list section reservations")
	}
	items, err := e.reservations.ListBySection(ctx, section, facultyID)
	if err != nil {
		return nil, storeErr(err, "reservations")
	}
	return items, nil
}

// MarkRead flags the student's own reservations as seen and returns how
// many changed.
func (e *Engine) MarkRead(ctx context.Context, student model.Identity, ids []uint64) (int64, error) {
	if student.Role != model.RoleStudent {
		return 0, apperr.New(apperr.ErrAuthorization, "only students have notification badges")
	}
	if len(ids) == 0 {
		return 0, apperr.New(apperr.ErrValidation, "ids must not be empty")
	}
	if len(ids) > 500 {
		return 0, apperr.New(apperr.ErrValidation, "at most 500 ids per request")
	}
	n, err := e.reservations.MarkRead(ctx, student.ID, ids)
	if err != nil {
		return 0, storeErr(err, "reservations")
	}
	return n, nil
}

// UnreadCount counts resolved reservations the student has not seen.
func (e *Engine) UnreadCount(ctx context.Context, student model.Identity) (int, error) {
	n, err := e.reservations.UnreadCount(ctx, student.ID)
	if err != nil {
		return 0, storeErr(err, "reservations")
	}
	return n, nil
}
