package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/consultation-booking/internal/model"
)

// SlotRepo manages persistence for schedule slots.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotCols = `id, offering_id, faculty_id, day, start_min, end_min, location, max_slots, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (model.ScheduleSlot, error) {
	var s model.ScheduleSlot
	err := row.Scan(&s.ID, &s.OfferingID, &s.FacultyID,
		&s.Window.Day, &s.Window.Start, &s.Window.End,
		&s.Location, &s.MaxSlots, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// slotColsPrefixed is slotCols qualified for queries that join offerings.
const slotColsPrefixed = `s.id, s.offering_id, s.faculty_id, s.day, s.start_min, s.end_min, s.location, s.max_slots, s.created_at, s.updated_at`

// CreateTx inserts s inside tx and populates its ID and timestamps.
func (r *SlotRepo) CreateTx(ctx context.Context, tx DBTX, s *model.ScheduleSlot) error {
	now := time.Now().UTC()
	const q = `INSERT INTO schedule_slots (offering_id, faculty_id, day, start_min, end_min, location, max_slots, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.OfferingID, s.FacultyID,
		string(s.Window.Day), int(s.Window.Start), int(s.Window.End), s.Location, s.MaxSlots, now, now)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	s.ID = uint64(id)
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a slot.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.ScheduleSlot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotCols+` FROM schedule_slots WHERE id = ?`, id))
	if err != nil {
		return model.ScheduleSlot{}, notFound(err)
	}
	return s, nil
}

// GetByIDTx re-reads a slot inside tx, row-locking it on MySQL so that a
// concurrent capacity edit cannot interleave with an admission.
func (r *SlotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, driver string) (model.ScheduleSlot, error) {
	s, err := scanSlot(tx.QueryRowContext(ctx, `SELECT `+slotCols+` FROM schedule_slots WHERE id = ?`+forUpdate(driver), id))
	if err != nil {
		return model.ScheduleSlot{}, notFound(err)
	}
	return s, nil
}

// UpdateTx rewrites the window, location and capacity of a slot owned by
// s.FacultyID.  Existing reservations keep their snapshots.
func (r *SlotRepo) UpdateTx(ctx context.Context, tx DBTX, s *model.ScheduleSlot) error {
	now := time.Now().UTC()
	const q = `UPDATE schedule_slots
               SET day = ?, start_min = ?, end_min = ?, location = ?, max_slots = ?, updated_at = ?
               WHERE id = ? AND faculty_id = ?`
	res, err := tx.ExecContext(ctx, q,
		string(s.Window.Day), int(s.Window.Start), int(s.Window.End), s.Location, s.MaxSlots, now,
		s.ID, s.FacultyID)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.UpdatedAt = now
	return nil
}

// MoveWindowTx re-windows the slots of an offering that sit exactly on from,
// so they follow the offering when its own window changes.
func (r *SlotRepo) MoveWindowTx(ctx context.Context, tx DBTX, offeringID uint64, from, to model.Window) (int64, error) {
	const q = `UPDATE schedule_slots
               SET day = ?, start_min = ?, end_min = ?, updated_at = ?
               WHERE offering_id = ? AND day = ? AND start_min = ? AND end_min = ?`
	res, err := tx.ExecContext(ctx, q,
		string(to.Day), int(to.Start), int(to.End), time.Now().UTC(),
		offeringID, string(from.Day), int(from.Start), int(from.End))
	if err != nil {
		return 0, fmt.Errorf("move slots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FindOverlappingTx returns the slots of facultyID's active offerings whose
// window intersects w.  Slots of excludeOfferingID are ignored (0 excludes
// nothing).
func (r *SlotRepo) FindOverlappingTx(ctx context.Context, tx DBTX, facultyID, excludeOfferingID uint64, w model.Window) ([]model.ScheduleSlot, error) {
	const q = `SELECT ` + slotColsPrefixed + `
               FROM schedule_slots s
               JOIN offerings o ON o.id = s.offering_id
               WHERE s.faculty_id = ? AND o.is_active = ? AND s.day = ? AND s.offering_id <> ?
                 AND NOT (s.end_min <= ? OR s.start_min >= ?)
               ORDER BY s.start_min, s.id`
	rows, err := tx.QueryContext(ctx, q, facultyID, true, string(w.Day), excludeOfferingID, int(w.Start), int(w.End))
	if err != nil {
		return nil, fmt.Errorf("find overlapping slots: %w", err)
	}
	return collectSlots(rows)
}

// ListByOffering returns the slots of an offering ordered by window.
func (r *SlotRepo) ListByOffering(ctx context.Context, offeringID uint64) ([]model.ScheduleSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotCols+` FROM schedule_slots WHERE offering_id = ? ORDER BY `+dayOrder+`, start_min, id`, offeringID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collectSlots(rows)
}

func collectSlots(rows *sql.Rows) ([]model.ScheduleSlot, error) {
	defer rows.Close()
	result := []model.ScheduleSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Delete removes a slot row.  Reservations that referenced it become
// orphans for the integrity cleanup to collect.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
