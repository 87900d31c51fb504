// Package catalog implements the offering catalog: the subjects a faculty
// member offers, their weekly windows and the capacity-bounded schedule
// slots students book against.
//
// The catalog's one invariant is that a faculty member's active offerings
// never overlap on the same day.  The overlap check and the write run under
// a per-faculty lock inside one transaction.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/lock"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// Catalog owns offerings and their slots and keeps a faculty's active
// schedule free of overlapping windows.
type Catalog struct {
	db        *sql.DB
	offerings *repository.OfferingRepo
	slots     *repository.SlotRepo
	locks     lock.Locker
	logger    *zap.Logger
}

// New returns a Catalog over db that serializes schedule writes through locks.
func New(db *sql.DB, locks lock.Locker, logger *zap.Logger) *Catalog {
	return &Catalog{
		db:        db,
		offerings: repository.NewOfferingRepo(db),
		slots:     repository.NewSlotRepo(db),
		locks:     locks,
		logger:    logger,
	}
}

// OfferingInput carries the caller-supplied fields of an offering.
type OfferingInput struct {
	Code   string       `json:"code"`
	Name   string       `json:"name"`
	Window model.Window `json:"window"`
	Room   string       `json:"room"`
}

func (in *OfferingInput) normalize() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Room = strings.TrimSpace(in.Room)
	var missing []string
	if in.Code == "" {
		missing = append(missing, "code")
	}
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Room == "" {
		missing = append(missing, "room")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return in.Window.Validate()
}

// CreateOffering adds an active offering owned by actor.
func (c *Catalog) CreateOffering(ctx context.Context, actor model.Identity, in OfferingInput) (model.Offering, error) {
	if actor.Role != model.RoleFaculty {
		return model.Offering{}, apperr.New(apperr.ErrAuthorization, "only faculty can create offerings")
	}
	if err := in.normalize(); err != nil {
		return model.Offering{}, err
	}
	o := model.Offering{FacultyID: actor.ID, Code: in.Code, Name: in.Name, Window: in.Window, Room: in.Room}

	err := c.withFacultyTx(ctx, actor.ID, func(tx *sql.Tx) error {
		if err := c.checkOverlap(ctx, tx, actor.ID, 0, in.Window); err != nil {
			return err
		}
		return c.offerings.CreateTx(ctx, tx, &o)
	})
	if err != nil {
		return model.Offering{}, err
	}

	c.logger.Info("Offering created",
		zap.Uint64("offering_id", o.ID),
		zap.Uint64("faculty_id", o.FacultyID),
		zap.String("window", o.Window.String()),
	)
	return o, nil
}

// UpdateOffering rewrites an offering owned by actor.  Slots sitting on the
// old window move with it.  The overlap check excludes the offering itself
// and is skipped for inactive offerings.
func (c *Catalog) UpdateOffering(ctx context.Context, actor model.Identity, id uint64, in OfferingInput) (model.Offering, error) {
	if err := in.normalize(); err != nil {
		return model.Offering{}, err
	}
	o := model.Offering{ID: id, FacultyID: actor.ID, Code: in.Code, Name: in.Name, Window: in.Window, Room: in.Room}

	err := c.withFacultyTx(ctx, actor.ID, func(tx *sql.Tx) error {
		current, err := c.offerings.GetByIDTx(ctx, tx, id, "")
		if errors.Is(err, repository.ErrNotFound) || (err == nil && current.FacultyID != actor.ID) {
			return apperr.New(apperr.ErrNotFound, "offering %d not found", id)
		}
		if err != nil {
			return err
		}
		if current.IsActive {
			if err := c.checkOverlap(ctx, tx, actor.ID, id, in.Window); err != nil {
				return err
			}
		}
		err = c.offerings.UpdateTx(ctx, tx, &o)
		if errors.Is(err, repository.ErrNoChange) {
			o = current
			return nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.ErrNotFound, "offering %d not found", id)
		}
		if err != nil {
			return err
		}
		if current.Window == o.Window {
			return nil
		}
		// Moved slots land on the window checked above.
		_, err = c.slots.MoveWindowTx(ctx, tx, id, current.Window, o.Window)
		return err
	})
	if err != nil {
		return model.Offering{}, err
	}

	c.logger.Info("Offering updated", zap.Uint64("offering_id", id), zap.Uint64("faculty_id", actor.ID))
	return o, nil
}

// DeactivateOffering soft-deletes an offering.  Faculty may deactivate their
// own offerings, admins any.  Existing reservations are not touched.
func (c *Catalog) DeactivateOffering(ctx context.Context, actor model.Identity, id uint64) error {
	owner := actor.ID
	if actor.IsAdmin() {
		o, err := c.offerings.GetByID(ctx, id)
		if err != nil {
			return storeErr(err, "offering %d", id)
		}
		owner = o.FacultyID
	}
	if err := c.offerings.Deactivate(ctx, id, owner); err != nil {
		return storeErr(err, "offering %d", id)
	}
	c.logger.Info("Offering deactivated", zap.Uint64("offering_id", id), zap.Uint64("actor_id", actor.ID))
	return nil
}

// GetOffering returns one offering, active or not.
func (c *Catalog) GetOffering(ctx context.Context, id uint64) (model.Offering, error) {
	o, err := c.offerings.GetByID(ctx, id)
	if err != nil {
		return model.Offering{}, storeErr(err, "offering %d", id)
	}
	return o, nil
}

// FindByFaculty lists the offerings of a faculty member.
func (c *Catalog) FindByFaculty(ctx context.Context, facultyID uint64, withInactive bool) ([]model.Offering, error) {
	list, err := c.offerings.ListByFaculty(ctx, facultyID, withInactive)
	if err != nil {
		return nil, storeErr(err, "offerings")
	}
	return list, nil
}

// Search finds active offerings by free text and optional day.
func (c *Catalog) Search(ctx context.Context, p repository.SearchParams) ([]model.Offering, int, error) {
	list, total, err := c.offerings.Search(ctx, p)
	if err != nil {
		return nil, 0, storeErr(err, "offerings")
	}
	return list, total, nil
}

// checkOverlap rejects w when it intersects another active offering of
// facultyID or one of that offering's slots.  excludeID names the offering
// w belongs to (0 for a new offering).
func (c *Catalog) checkOverlap(ctx context.Context, tx *sql.Tx, facultyID, excludeID uint64, w model.Window) error {
	overlaps, err := c.offerings.FindOverlappingTx(ctx, tx, facultyID, excludeID, w)
	if err != nil {
		return err
	}
	if len(overlaps) > 0 {
		o := overlaps[0]
		return apperr.New(apperr.ErrConflict, "window %s overlaps offering %d (%s %s)", w, o.ID, o.Code, o.Window)
	}
	slots, err := c.slots.FindOverlappingTx(ctx, tx, facultyID, excludeID, w)
	if err != nil {
		return err
	}
	if len(slots) > 0 {
		s := slots[0]
		return apperr.New(apperr.ErrConflict, "window %s overlaps slot %d of offering %d (%s)", w, s.ID, s.OfferingID, s.Window)
	}
	return nil
}

// withFacultyTx runs fn in a transaction while holding the faculty's catalog
// lock.  Errors that are not already apperr kinds become dependency errors.
func (c *Catalog) withFacultyTx(ctx context.Context, facultyID uint64, fn func(tx *sql.Tx) error) error {
	release, err := c.locks.Acquire(ctx, fmt.Sprintf("catalog:faculty:%d", facultyID))
	if err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "catalog lock unavailable")
	}
	defer release()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return storeErr(err, "offering")
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrDependency, err, "commit transaction")
	}
	committed = true
	return nil
}

// storeErr translates repository outcomes into apperr kinds.  Errors that
// already carry a kind pass through unchanged.
func storeErr(err error, format string, args ...any) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.ErrNotFound, format+" not found", args...)
	case errors.Is(err, repository.ErrForbidden):
		return apperr.New(apperr.ErrAuthorization, "not permitted")
	default:
		return apperr.Wrap(apperr.ErrDependency, err, "store unavailable")
	}
}
