package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/consultation-booking/internal/model"
)

// OfferingRepo manages persistence for offerings.  Windows are stored as
// (day, start_min, end_min) so overlap checks stay plain integer
// comparisons on both dialects.
type OfferingRepo struct {
	db *sql.DB
}

// NewOfferingRepo constructs an OfferingRepo with the given DB handle.
func NewOfferingRepo(db *sql.DB) *OfferingRepo {
	return &OfferingRepo{db: db}
}

const offeringCols = `id, faculty_id, code, name, day, start_min, end_min, room, is_active, created_at, updated_at`

func scanOffering(row interface{ Scan(...any) error }) (model.Offering, error) {
	var o model.Offering
	err := row.Scan(&o.ID, &o.FacultyID, &o.Code, &o.Name,
		&o.Window.Day, &o.Window.Start, &o.Window.End,
		&o.Room, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectOfferings(rows *sql.Rows) ([]model.Offering, error) {
	defer rows.Close()
	result := []model.Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// CreateTx inserts o inside tx and populates its ID and timestamps.  New
// offerings are always active.
func (r *OfferingRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Offering) error {
	now := time.Now().UTC()
	const q = `INSERT INTO offerings (faculty_id, code, name, day, start_min, end_min, room, is_active, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, o.FacultyID, o.Code, o.Name,
		string(o.Window.Day), int(o.Window.Start), int(o.Window.End), o.Room, true, now, now)
	if err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create offering: %w", err)
	}
	o.ID = uint64(id)
	o.IsActive = true
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

// FindOverlappingTx returns the active offerings of facultyID whose window
// intersects w, ignoring excludeID (0 excludes nothing).  An offering
// overlaps when it starts before the proposed end and ends after the
// proposed start.
func (r *OfferingRepo) FindOverlappingTx(ctx context.Context, tx DBTX, facultyID, excludeID uint64, w model.Window) ([]model.Offering, error) {
	const q = `SELECT ` + offeringCols + `
               FROM offerings
               WHERE faculty_id = ? AND is_active = ? AND day = ? AND id <> ?
                 AND NOT (end_min <= ? OR start_min >= ?)`
	rows, err := tx.QueryContext(ctx, q, facultyID, true, string(w.Day), excludeID, int(w.Start), int(w.End))
	if err != nil {
		return nil, fmt.Errorf("find overlapping offerings: %w", err)
	}
	return collectOfferings(rows)
}

// GetByID retrieves an offering regardless of its active flag.
func (r *OfferingRepo) GetByID(ctx context.Context, id uint64) (model.Offering, error) {
	return r.getByID(ctx, r.db, id, "")
}

// GetByIDTx retrieves and, on MySQL, row-locks an offering inside tx.
func (r *OfferingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64, driver string) (model.Offering, error) {
	return r.getByID(ctx, tx, id, forUpdate(driver))
}

func (r *OfferingRepo) getByID(ctx context.Context, q DBTX, id uint64, suffix string) (model.Offering, error) {
	o, err := scanOffering(q.QueryRowContext(ctx, `SELECT `+offeringCols+` FROM offerings WHERE id = ?`+suffix, id))
	if err != nil {
		return model.Offering{}, notFound(err)
	}
	return o, nil
}

// UpdateTx rewrites the mutable fields of o when it belongs to o.FacultyID.
// It returns ErrNotFound when the row is absent or owned by someone else
// and ErrNoChange when every field already holds the requested value.
func (r *OfferingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, o *model.Offering) error {
	now := time.Now().UTC()
	const q = `UPDATE offerings
               SET code = ?, name = ?, day = ?, start_min = ?, end_min = ?, room = ?, updated_at = ?
               WHERE id = ? AND faculty_id = ?
                 AND (code <> ? OR name <> ? OR day <> ? OR start_min <> ? OR end_min <> ? OR room <> ?)`
	day, start, end := string(o.Window.Day), int(o.Window.Start), int(o.Window.End)
	res, err := tx.ExecContext(ctx, q,
		o.Code, o.Name, day, start, end, o.Room, now, // SET
		o.ID, o.FacultyID, // WHERE (record + owner)
		o.Code, o.Name, day, start, end, o.Room, // only if at least one field differs
	)
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		updated, err := r.getByID(ctx, tx, o.ID, "")
		if err != nil {
			return err
		}
		*o = updated
		return nil
	}

	// Determine if it's "not found/ownership" or simply "no change".
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM offerings WHERE id = ? AND faculty_id = ? LIMIT 1`, o.ID, o.FacultyID).Scan(&one)
	if err != nil {
		return notFound(err)
	}
	return ErrNoChange
}

// Deactivate clears the active flag of an offering owned by facultyID.
// Deactivating an already inactive offering succeeds.  Reservations are
// left untouched.
func (r *OfferingRepo) Deactivate(ctx context.Context, id, facultyID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE offerings SET is_active = ?, updated_at = ? WHERE id = ? AND faculty_id = ?`,
		false, time.Now().UTC(), id, facultyID)
	if err != nil {
		return fmt.Errorf("deactivate offering: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByFaculty returns the offerings of facultyID ordered by weekday and
// start time.  Inactive offerings are included only when withInactive is set.
func (r *OfferingRepo) ListByFaculty(ctx context.Context, facultyID uint64, withInactive bool) ([]model.Offering, error) {
	q := `SELECT ` + offeringCols + ` FROM offerings WHERE faculty_id = ?`
	args := []any{facultyID}
	if !withInactive {
		q += ` AND is_active = ?`
		args = append(args, true)
	}
	q += ` ORDER BY ` + dayOrder + `, start_min, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	return collectOfferings(rows)
}

// SearchParams controls Search.  Empty Text matches every active offering.
type SearchParams struct {
	Text   string
	Day    model.Day
	Limit  int
	Offset int
}

// Search finds active offerings whose code, name or room contains the text,
// case-insensitively.  It returns the page and the total match count.
func (r *OfferingRepo) Search(ctx context.Context, p SearchParams) ([]model.Offering, int, error) {
	where := []string{"is_active = ?"}
	args := []any{true}
	if t := strings.TrimSpace(p.Text); t != "" {
		like := "%" + escapeLike(strings.ToLower(t)) + "%"
		where = append(where, `(LOWER(code) LIKE ? ESCAPE '!' OR LOWER(name) LIKE ? ESCAPE '!' OR LOWER(room) LIKE ? ESCAPE '!')`)
		args = append(args, like, like, like)
	}
	if p.Day != "" {
		where = append(where, "day = ?")
		args = append(args, string(p.Day))
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM offerings"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search offerings: %w", err)
	}
	limit, offset := clampPage(p.Limit, p.Offset)
	q := "SELECT " + offeringCols + " FROM offerings" + cond + " ORDER BY code, " + dayOrder + ", start_min, id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search offerings: %w", err)
	}
	items, err := collectOfferings(rows)
	return items, total, err
}

// dayOrder sorts the three-letter weekday column Monday first.
const dayOrder = `CASE day WHEN 'Mon' THEN 1 WHEN 'Tue' THEN 2 WHEN 'Wed' THEN 3 WHEN 'Thu' THEN 4 WHEN 'Fri' THEN 5 ELSE 6 END`

// escapeLike escapes LIKE metacharacters so user text matches literally.
// '!' is the escape character: backslash means different things to MySQL
// and SQLite string literals.
func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}

// clampPage bounds a limit to 1..100 (default 20) and the offset to >= 0.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
