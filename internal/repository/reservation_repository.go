package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/consultation-booking/internal/model"
)

// ReservationRepo provides persistence for the booking ledger.  All
// timestamps are written by the caller in UTC so that the engine controls
// the clock.  Occupancy and duplicate checks count the statuses returned by
// model.OccupyingStatuses.
type ReservationRepo struct {
	db     *sql.DB
	driver string
}

// NewReservationRepo returns a ReservationRepo bound to db.  driver selects
// the row-locking dialect ("mysql" or "sqlite").
func NewReservationRepo(db *sql.DB, driver string) *ReservationRepo {
	return &ReservationRepo{db: db, driver: driver}
}

const reservationCols = `r.id, r.faculty_id, r.student_id, r.offering_id, r.slot_id,
       r.day, r.start_min, r.end_min, r.location, r.section, r.status, r.purpose,
       r.is_read, r.created_at, r.approved_at, r.completed_at, r.updated_at`

const detailCols = reservationCols + `,
       COALESCE(st.name, ''), COALESCE(st.email, ''), COALESCE(fa.name, ''),
       COALESCE(o.code, ''), COALESCE(o.name, '')`

const detailFrom = ` FROM reservations r
       LEFT JOIN users st ON st.id = r.student_id
       LEFT JOIN users fa ON fa.id = r.faculty_id
       LEFT JOIN offerings o ON o.id = r.offering_id`

type scanner interface{ Scan(...any) error }

func reservationDest(res *model.Reservation, approved, completed *sql.NullTime) []any {
	return []any{
		&res.ID, &res.FacultyID, &res.StudentID, &res.OfferingID, &res.SlotID,
		&res.Window.Day, &res.Window.Start, &res.Window.End, &res.Location, &res.Section,
		&res.Status, &res.Purpose, &res.IsRead, &res.CreatedAt, approved, completed, &res.UpdatedAt,
	}
}

func finishTimes(res *model.Reservation, approved, completed sql.NullTime) {
	if approved.Valid {
		t := approved.Time.UTC()
		res.ApprovedAt = &t
	}
	if completed.Valid {
		t := completed.Time.UTC()
		res.CompletedAt = &t
	}
}

func scanReservation(row scanner) (model.Reservation, error) {
	var res model.Reservation
	var approved, completed sql.NullTime
	if err := row.Scan(reservationDest(&res, &approved, &completed)...); err != nil {
		return model.Reservation{}, err
	}
	finishTimes(&res, approved, completed)
	return res, nil
}

func scanDetail(row scanner) (model.ReservationDetail, error) {
	var d model.ReservationDetail
	var approved, completed sql.NullTime
	dest := append(reservationDest(&d.Reservation, &approved, &completed),
		&d.StudentName, &d.StudentEmail, &d.FacultyName, &d.SubjectCode, &d.SubjectName)
	if err := row.Scan(dest...); err != nil {
		return model.ReservationDetail{}, err
	}
	finishTimes(&d.Reservation, approved, completed)
	return d, nil
}

func collectDetails(rows *sql.Rows) ([]model.ReservationDetail, error) {
	defer rows.Close()
	result := []model.ReservationDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// occupying renders the IN (...) placeholder list and arguments for the
// statuses that count against capacity.
func occupying() (string, []any) {
	sts := model.OccupyingStatuses()
	args := make([]any, len(sts))
	for i, s := range sts {
		args[i] = string(s)
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?,", len(sts)), ",") + ")", args
}

// keyArgs returns the (subject, window) key arguments in column order.
func keyArgs(offeringID uint64, w model.Window) []any {
	return []any{offeringID, string(w.Day), int(w.Start), int(w.End)}
}

// CreateTx inserts res within tx and populates the generated ID.  The
// caller supplies status and timestamps.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
               (faculty_id, student_id, offering_id, slot_id, day, start_min, end_min, location, section,
                status, purpose, is_read, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.FacultyID, res.StudentID, res.OfferingID, res.SlotID,
		string(res.Window.Day), int(res.Window.Start), int(res.Window.End), res.Location, res.Section,
		string(res.Status), res.Purpose, res.IsRead, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	res.ID = uint64(id)
	return nil
}

// CountActive counts occupying reservations for the (subject, window) key.
// Pass a *sql.Tx to count inside the admission critical section.
func (r *ReservationRepo) CountActive(ctx context.Context, q DBTX, offeringID uint64, w model.Window) (int, error) {
	in, sargs := occupying()
	query := `SELECT COUNT(*) FROM reservations
              WHERE offering_id = ? AND day = ? AND start_min = ? AND end_min = ? AND status IN ` + in
	var n int
	if err := q.QueryRowContext(ctx, query, append(keyArgs(offeringID, w), sargs...)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

// HasActiveForStudent reports whether studentID already holds an occupying
// reservation for the (subject, window) key.
func (r *ReservationRepo) HasActiveForStudent(ctx context.Context, q DBTX, studentID, offeringID uint64, w model.Window) (bool, error) {
	in, sargs := occupying()
	query := `SELECT 1 FROM reservations
              WHERE student_id = ? AND offering_id = ? AND day = ? AND start_min = ? AND end_min = ? AND status IN ` + in + `
              LIMIT 1`
	args := append([]any{studentID}, keyArgs(offeringID, w)...)
	var one int
	err := q.QueryRowContext(ctx, query, append(args, sargs...)...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate reservation: %w", err)
	}
	return true, nil
}

// GetByID returns the raw reservation row.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations r WHERE r.id = ?`, id))
	if err != nil {
		return model.Reservation{}, notFound(err)
	}
	return res, nil
}

// GetForUpdateTx reads a reservation inside tx, row-locking it on MySQL.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations r WHERE r.id = ?`+forUpdate(r.driver), id))
	if err != nil {
		return model.Reservation{}, notFound(err)
	}
	return res, nil
}

// UpdateStatusTx moves a reservation from `from` to `to`, writing the
// resolution timestamps.  A status change also clears the read flag so the
// student sees the new resolution.  It returns ErrConflict when the row is
// no longer in `from`.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.Status, approvedAt, completedAt *time.Time, now time.Time) error {
	const q = `UPDATE reservations
               SET status = ?, approved_at = COALESCE(?, approved_at), completed_at = COALESCE(?, completed_at),
                   is_read = ?, updated_at = ?
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(to), nullTime(approvedAt), nullTime(completedAt), false, now, id, string(from))
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// UpdatePurpose replaces the purpose text of a reservation.
func (r *ReservationRepo) UpdatePurpose(ctx context.Context, id uint64, purpose string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reservations SET purpose = ?, updated_at = ? WHERE id = ?`, purpose, now, id)
	if err != nil {
		return fmt.Errorf("update reservation purpose: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRead sets the read flag on the given reservations of studentID and
// returns how many rows changed.  IDs belonging to other students are
// silently skipped.
func (r *ReservationRepo) MarkRead(ctx context.Context, studentID uint64, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{true, studentID}
	for _, id := range ids {
		args = append(args, id)
	}
	q := `UPDATE reservations SET is_read = ? WHERE student_id = ? AND id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + `)`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("mark reservations read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UnreadCount counts resolved reservations of studentID not yet marked read.
func (r *ReservationRepo) UnreadCount(ctx context.Context, studentID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE student_id = ? AND is_read = ? AND status <> ?`,
		studentID, false, string(model.StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread reservations: %w", err)
	}
	return n, nil
}

// GetDetail returns a reservation with resolved display fields.
func (r *ReservationRepo) GetDetail(ctx context.Context, id uint64) (model.ReservationDetail, error) {
	d, err := scanDetail(r.db.QueryRowContext(ctx, `SELECT `+detailCols+detailFrom+` WHERE r.id = ?`, id))
	if err != nil {
		return model.ReservationDetail{}, notFound(err)
	}
	return d, nil
}

// ListByFaculty returns one page of the reservations assigned to facultyID,
// newest first, and the total count.
func (r *ReservationRepo) ListByFaculty(ctx context.Context, facultyID uint64, limit, offset int) ([]model.ReservationDetail, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE faculty_id = ?`, facultyID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count faculty reservations: %w", err)
	}
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+detailCols+detailFrom+` WHERE r.faculty_id = ? ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		facultyID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list faculty reservations: %w", err)
	}
	items, err := collectDetails(rows)
	return items, total, err
}

// ListByStudent returns every reservation of studentID, newest first.
func (r *ReservationRepo) ListByStudent(ctx context.Context, studentID uint64) ([]model.ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+detailCols+detailFrom+` WHERE r.student_id = ? ORDER BY r.created_at DESC, r.id DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student reservations: %w", err)
	}
	return collectDetails(rows)
}

// ListBySection returns every reservation captured for a section, newest
// first.  facultyID limits the result to one faculty member when non-zero.
func (r *ReservationRepo) ListBySection(ctx context.Context, section string, facultyID uint64) ([]model.ReservationDetail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE r.section = ?`
	args := []any{section}
	if facultyID != 0 {
		q += ` AND r.faculty_id = ?`
		args = append(args, facultyID)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY r.created_at DESC, r.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list section reservations: %w", err)
	}
	return collectDetails(rows)
}

// Orphan is a reservation with at least one dangling reference.  Missing
// names the unresolved references ("student", "faculty", "subject", "slot").
type Orphan struct {
	ID      uint64   `json:"id"`
	Missing []string `json:"missing"`
}

// ListOrphans scans the ledger for reservations whose student, faculty,
// subject or slot no longer exists.  Deactivated offerings still resolve.
func (r *ReservationRepo) ListOrphans(ctx context.Context) ([]Orphan, error) {
	const q = `SELECT r.id,
                      CASE WHEN st.id IS NULL THEN 1 ELSE 0 END,
                      CASE WHEN fa.id IS NULL THEN 1 ELSE 0 END,
                      CASE WHEN o.id IS NULL THEN 1 ELSE 0 END,
                      CASE WHEN s.id IS NULL THEN 1 ELSE 0 END
               FROM reservations r
               LEFT JOIN users st ON st.id = r.student_id
               LEFT JOIN users fa ON fa.id = r.faculty_id
               LEFT JOIN offerings o ON o.id = r.offering_id
               LEFT JOIN schedule_slots s ON s.id = r.slot_id
               WHERE st.id IS NULL OR fa.id IS NULL OR o.id IS NULL OR s.id IS NULL
               ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orphan reservations: %w", err)
	}
	defer rows.Close()
	var result []Orphan
	for rows.Next() {
		var o Orphan
		var student, faculty, subject, slot int
		if err := rows.Scan(&o.ID, &student, &faculty, &subject, &slot); err != nil {
			return nil, err
		}
		for _, m := range []struct {
			flag int
			name string
		}{{student, "student"}, {faculty, "faculty"}, {subject, "subject"}, {slot, "slot"}} {
			if m.flag == 1 {
				o.Missing = append(o.Missing, m.name)
			}
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Delete hard-deletes one reservation.  Only the integrity cleanup calls it.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
