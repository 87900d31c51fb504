// Package notify delivers reservation status changes to students on a
// best-effort basis.  Delivery never blocks or fails the state change that
// triggered it: the Dispatcher runs each notification on its own goroutine
// with a timeout and only logs failures.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/queue"
)

// Notifier delivers one status-change event.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, ev queue.StatusChangedEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev queue.StatusChangedEvent) error

func (f NotifierFunc) NotifyStatusChange(ctx context.Context, ev queue.StatusChangedEvent) error {
	return f(ctx, ev)
}

// EventFor builds the event announcing that d entered its current status.
func EventFor(d model.ReservationDetail, at time.Time) queue.StatusChangedEvent {
	return queue.StatusChangedEvent{
		EventID:       uuid.NewString(),
		ReservationID: d.ID,
		StudentID:     d.StudentID,
		StudentEmail:  d.StudentEmail,
		StudentName:   d.StudentName,
		FacultyName:   d.FacultyName,
		SubjectCode:   d.SubjectCode,
		SubjectName:   d.SubjectName,
		Status:        string(d.Status),
		Day:           string(d.Window.Day),
		Start:         d.Window.Start.String(),
		End:           d.Window.End.String(),
		Location:      d.Location,
		OccurredAt:    at.UTC(),
	}
}

// Dispatcher runs notifications asynchronously.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher wraps n.  A non-positive timeout defaults to five seconds.
func NewDispatcher(n Notifier, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: n, timeout: timeout, logger: logger}
}

// Dispatch sends ev in the background and returns immediately.  Errors and
// panics raised by the notifier are logged and swallowed.
func (d *Dispatcher) Dispatch(ev queue.StatusChangedEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.deliver(ctx, ev); err != nil {
			d.logger.Warn("Status notification failed",
				zap.String("event_id", ev.EventID),
				zap.Uint64("reservation_id", ev.ReservationID),
				zap.String("status", ev.Status),
				zap.Error(err),
			)
			return
		}
		d.logger.Debug("Status notification sent",
			zap.String("event_id", ev.EventID),
			zap.Uint64("reservation_id", ev.ReservationID),
		)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, ev queue.StatusChangedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return d.notifier.NotifyStatusChange(ctx, ev)
}

// Wait blocks until every dispatched notification has finished.  The server
// calls it during shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// LogNotifier only records the event.  It is used when no broker is
// configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) NotifyStatusChange(_ context.Context, ev queue.StatusChangedEvent) error {
	n.Logger.Info("Status notification (no broker configured)",
		zap.String("event_id", ev.EventID),
		zap.String("summary", ev.Summary()),
	)
	return nil
}
