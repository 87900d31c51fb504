// Package repository holds the SQL data access for users, offerings,
// schedule slots and reservations.  Queries use `?` placeholders and
// portable SQL so that the same statements run on MySQL and SQLite; the
// only dialect-specific fragment is the row-locking suffix.
//
// Repositories return the sentinels below for expected outcomes and wrap
// driver failures with the failing operation's name.  Translating these
// into the apperr taxonomy is the job of the service layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when the requested row does not exist (or is not
// visible to the scoped caller).
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as an update racing a concurrent status change.
var ErrConflict = errors.New("conflict")

// ErrNoChange indicates the UPDATE attempted to set fields equal to current values.
var ErrNoChange = errors.New("no change")

// ErrEmailExists is returned when a user with the same email already exists.
var ErrEmailExists = errors.New("email already exists")

// DBTX is satisfied by both *sql.DB and *sql.Tx so that read helpers can be
// shared between plain and transactional callers.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// forUpdate returns the row-locking suffix for driver.  SQLite serializes
// writers at the database level and has no FOR UPDATE.
func forUpdate(driver string) string {
	if driver == "mysql" {
		return " FOR UPDATE"
	}
	return ""
}

// isDuplicateKey reports whether err is a unique-constraint violation on
// either supported driver (MySQL 1062, SQLite UNIQUE constraint failed).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint failed")
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
