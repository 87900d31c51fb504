package booking

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/model"
)

// GetOccupancy reports how much of a slot's capacity is taken.  It counts
// pending and approved reservations for the slot's (subject, window), the
// same rule admission applies.
func (e *Engine) GetOccupancy(ctx context.Context, slotID uint64) (model.Occupancy, error) {
	slot, err := e.slots.GetByID(ctx, slotID)
	if err != nil {
		return model.Occupancy{}, storeErr(err, "slot %d", slotID)
	}
	count, err := e.reservations.CountActive(ctx, e.db, slot.OfferingID, slot.Window)
	if err != nil {
		return model.Occupancy{}, storeErr(err, "slot %d", slotID)
	}
	return model.NewOccupancy(slot.ID, count, slot.MaxSlots), nil
}

// PurgeResult is the outcome for one orphaned reservation.
type PurgeResult struct {
	ReservationID uint64   `json:"reservation_id"`
	Missing       []string `json:"missing"`
	Deleted       bool     `json:"deleted"`
	Error         string   `json:"error,omitempty"`
}

// PurgeReport aggregates a cleanup run.
type PurgeReport struct {
	Orphans int           `json:"orphans"`
	Deleted int           `json:"deleted"`
	Failed  int           `json:"failed"`
	Results []PurgeResult `json:"results"`
}

// PurgeOrphans deletes reservations whose student, faculty, subject or slot
// no longer exists.  Each orphan is deleted on its own; a failed delete is
// recorded in the report and the run continues.  Only administrators may
// run it.
func (e *Engine) PurgeOrphans(ctx context.Context, actor model.Identity) (PurgeReport, error) {
	if !actor.IsAdmin() {
		return PurgeReport{}, apperr.New(apperr.ErrAuthorization, "administrator authority required")
	}
	orphans, err := e.orphans.ListOrphans(ctx)
	if err != nil {
		return PurgeReport{}, apperr.Wrap(apperr.ErrDependency, err, "scan ledger")
	}

	report := PurgeReport{Orphans: len(orphans), Results: make([]PurgeResult, 0, len(orphans))}
	for _, o := range orphans {
		r := PurgeResult{ReservationID: o.ID, Missing: o.Missing}
		if err := e.orphans.Delete(ctx, o.ID); err != nil {
			r.Error = err.Error()
			report.Failed++
			e.logger.Warn("Orphan purge failed", zap.Uint64("reservation_id", o.ID), zap.Error(err))
		} else {
			r.Deleted = true
			report.Deleted++
		}
		report.Results = append(report.Results, r)
	}

	e.logger.Info("Orphan purge finished",
		zap.Uint64("actor_id", actor.ID),
		zap.Int("orphans", report.Orphans),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
