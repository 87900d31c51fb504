// Package booking implements the booking engine: admission of reservation
// requests against slot capacity, the reservation state machine, occupancy
// queries and the integrity cleanup of the ledger.
//
// Admission for one (subject, window) key is a critical section.  The
// engine holds a per-key lock from lock.Locker for the duration of the
// duplicate check, the capacity count and the insert, and runs all three in
// one transaction.  On MySQL the slot row is additionally locked FOR UPDATE
// so that replicas using in-process locks still serialize on the store.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/lock"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/notify"
	"github.com/iliyamo/consultation-booking/internal/repository"
)

// orphanStore is the slice of the ledger used by PurgeOrphans.
type orphanStore interface {
	ListOrphans(ctx context.Context) ([]repository.Orphan, error)
	Delete(ctx context.Context, id uint64) error
}

// Engine admits, resolves and cleans up reservations against the catalog.
type Engine struct {
	db           *sql.DB
	driver       string
	reservations *repository.ReservationRepo
	slots        *repository.SlotRepo
	offerings    *repository.OfferingRepo
	orphans      orphanStore
	locks        lock.Locker
	notifier     *notify.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
	lockWait     time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now for timestamps written by the engine.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLockWait bounds how long admission waits for the per-key lock before
// failing with a retryable dependency error.  The default is three seconds.
func WithLockWait(d time.Duration) Option {
	return func(e *Engine) { e.lockWait = d }
}

// New builds an Engine over db.  driver is "mysql" or "sqlite".
func New(db *sql.DB, driver string, locks lock.Locker, notifier *notify.Dispatcher, logger *zap.Logger, opts ...Option) *Engine {
	reservations := repository.NewReservationRepo(db, driver)
	e := &Engine{
		db:           db,
		driver:       driver,
		reservations: reservations,
		slots:        repository.NewSlotRepo(db),
		offerings:    repository.NewOfferingRepo(db),
		orphans:      reservations,
		locks:        locks,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
		lockWait:     3 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// canResolve reports whether actor may change a reservation: administrators
// and the faculty member it is assigned to.
func canResolve(actor model.Identity, r model.Reservation) bool {
	return actor.IsAdmin() || (actor.Role == model.RoleFaculty && actor.ID == r.FacultyID)
}

// canView extends canResolve with the reservation's own student.
func canView(actor model.Identity, r model.Reservation) bool {
	return canResolve(actor, r) || (actor.Role == model.RoleStudent && actor.ID == r.StudentID)
}

// storeErr translates repository outcomes into apperr kinds.  Errors that
// already carry a kind pass through unchanged; anything else is a store
// failure and therefore retryable.
func storeErr(err error, format string, args ...any) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.ErrNotFound, format+" not found", args...)
	default:
		return apperr.Wrap(apperr.ErrDependency, err, "store unavailable")
	}
}
