package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// SlotInput carries optional slot fields.  Nil fields fall back to the
// offering's window and room and to DefaultMaxSlots on create, and are left
// unchanged on update.
type SlotInput struct {
	Window   *model.Window `json:"window,omitempty"`
	Location *string       `json:"location,omitempty"`
	MaxSlots *int          `json:"max_slots,omitempty"`
}

func (in SlotInput) apply(s *model.ScheduleSlot) error {
	if in.Window != nil {
		s.Window = *in.Window
	}
	if in.Location != nil {
		s.Location = strings.TrimSpace(*in.Location)
	}
	if in.MaxSlots != nil {
		s.MaxSlots = *in.MaxSlots
	}
	if err := s.Window.Validate(); err != nil {
		return err
	}
	if s.Location == "" {
		return apperr.New(apperr.ErrValidation, "location is required")
	}
	if s.MaxSlots < model.MinMaxSlots || s.MaxSlots > model.MaxMaxSlots {
		return apperr.New(apperr.ErrValidation, "max_slots must be between %d and %d", model.MinMaxSlots, model.MaxMaxSlots)
	}
	return nil
}

// CreateSlot authors a bookable slot for an active offering owned by actor
// (admins may author for any offering).  The slot window must not overlap
// the faculty's other active offerings or their slots.
func (c *Catalog) CreateSlot(ctx context.Context, actor model.Identity, offeringID uint64, in SlotInput) (model.ScheduleSlot, error) {
	o, err := c.offerings.GetByID(ctx, offeringID)
	if err != nil {
		return model.ScheduleSlot{}, storeErr(err, "offering %d", offeringID)
	}
	if !actor.IsAdmin() && o.FacultyID != actor.ID {
		return model.ScheduleSlot{}, apperr.New(apperr.ErrNotFound, "offering %d not found", offeringID)
	}

	s := model.ScheduleSlot{
		OfferingID: o.ID,
		FacultyID:  o.FacultyID,
		Window:     o.Window,
		Location:   o.Room,
		MaxSlots:   model.DefaultMaxSlots,
	}
	if err := in.apply(&s); err != nil {
		return model.ScheduleSlot{}, err
	}

	err = c.withFacultyTx(ctx, o.FacultyID, func(tx *sql.Tx) error {
		current, err := c.offerings.GetByIDTx(ctx, tx, o.ID, "")
		if err != nil {
			return err
		}
		if !current.IsActive {
			return apperr.New(apperr.ErrValidation, "offering %d is inactive", offeringID)
		}
		if err := c.checkOverlap(ctx, tx, o.FacultyID, o.ID, s.Window); err != nil {
			return err
		}
		return c.slots.CreateTx(ctx, tx, &s)
	})
	if err != nil {
		return model.ScheduleSlot{}, err
	}

	c.logger.Info("Slot created",
		zap.Uint64("slot_id", s.ID),
		zap.Uint64("offering_id", s.OfferingID),
		zap.String("window", s.Window.String()),
		zap.Int("max_slots", s.MaxSlots),
	)
	return s, nil
}

// UpdateSlot edits a slot.  Reservations keep their snapshots; lowering
// MaxSlots below the current occupancy only blocks new admissions.  A moved
// window is checked like a new slot while the offering is active.
func (c *Catalog) UpdateSlot(ctx context.Context, actor model.Identity, slotID uint64, in SlotInput) (model.ScheduleSlot, error) {
	s, err := c.slots.GetByID(ctx, slotID)
	if err != nil {
		return model.ScheduleSlot{}, storeErr(err, "slot %d", slotID)
	}
	if !actor.IsAdmin() && s.FacultyID != actor.ID {
		return model.ScheduleSlot{}, apperr.New(apperr.ErrNotFound, "slot %d not found", slotID)
	}
	previous := s.Window
	if err := in.apply(&s); err != nil {
		return model.ScheduleSlot{}, err
	}

	err = c.withFacultyTx(ctx, s.FacultyID, func(tx *sql.Tx) error {
		if s.Window != previous {
			o, err := c.offerings.GetByIDTx(ctx, tx, s.OfferingID, "")
			if err != nil {
				return err
			}
			if o.IsActive {
				if err := c.checkOverlap(ctx, tx, s.FacultyID, s.OfferingID, s.Window); err != nil {
					return err
				}
			}
		}
		if err := c.slots.UpdateTx(ctx, tx, &s); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.New(apperr.ErrNotFound, "slot %d not found", slotID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.ScheduleSlot{}, err
	}
	c.logger.Info("Slot updated", zap.Uint64("slot_id", slotID), zap.Int("max_slots", s.MaxSlots))
	return s, nil
}

// GetSlot returns one slot.
func (c *Catalog) GetSlot(ctx context.Context, slotID uint64) (model.ScheduleSlot, error) {
	s, err := c.slots.GetByID(ctx, slotID)
	if err != nil {
		return model.ScheduleSlot{}, storeErr(err, "slot %d", slotID)
	}
	return s, nil
}

// ListSlots returns the slots of an offering.
func (c *Catalog) ListSlots(ctx context.Context, offeringID uint64) ([]model.ScheduleSlot, error) {
	if _, err := c.offerings.GetByID(ctx, offeringID); err != nil {
		return nil, storeErr(err, "offering %d", offeringID)
	}
	list, err := c.slots.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, storeErr(err, "slots")
	}
	return list, nil
}
