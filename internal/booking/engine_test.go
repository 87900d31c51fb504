package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/consultation-booking/internal/apperr"
	"github.com/iliyamo/consultation-booking/internal/catalog"
	"github.com/iliyamo/consultation-booking/internal/lock"
	"github.com/iliyamo/consultation-booking/internal/model"
	"github.com/iliyamo/consultation-booking/internal/notify"
	"github.com/iliyamo/consultation-booking/internal/queue"
	"github.com/iliyamo/consultation-booking/internal/repository"
	"github.com/iliyamo/consultation-booking/internal/testutil"
)

var fixedNow = time.Date(2026, 2, 9, 8, 30, 0, 0, time.UTC)

type fixture struct {
	db         *sql.DB
	engine     *Engine
	catalog    *catalog.Catalog
	locks      *lock.Local
	dispatcher *notify.Dispatcher
	faculty    model.Identity
	admin      model.Identity
	offering   model.Offering
	slot       model.ScheduleSlot

	events    chan queue.StatusChangedEvent
	notifyErr error
}

func newFixture(t *testing.T, maxSlots int) *fixture {
	t.Helper()
	f := &fixture{
		db:     testutil.OpenStore(t),
		locks:  lock.NewLocal(),
		events: make(chan queue.StatusChangedEvent, 32),
	}
	f.dispatcher = notify.NewDispatcher(notify.NotifierFunc(func(ctx context.Context, ev queue.StatusChangedEvent) error {
		select {
		case f.events <- ev:
		case <-ctx.Done():
		}
		return f.notifyErr
	}), time.Second, zap.NewNop())
	t.Cleanup(f.dispatcher.Wait)

	f.catalog = catalog.New(f.db, f.locks, zap.NewNop())
	f.engine = New(f.db, "sqlite", f.locks, f.dispatcher, zap.NewNop(), WithClock(func() time.Time { return fixedNow }))
	f.faculty = model.IdentityOf(testutil.CreateUser(t, f.db, model.RoleFaculty, "Prof. Reyes", ""))
	f.admin = model.IdentityOf(testutil.CreateUser(t, f.db, model.RoleAdmin, "Registrar", ""))

	ctx := context.Background()
	var err error
	f.offering, err = f.catalog.CreateOffering(ctx, f.faculty, catalog.OfferingInput{
		Code: "CS101", Name: "Intro to Computing",
		Window: model.Window{Day: model.Monday, Start: model.MustTime("09:00"), End: model.MustTime("10:00")},
		Room:   "Room 204",
	})
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	f.slot, err = f.catalog.CreateSlot(ctx, f.faculty, f.offering.ID, catalog.SlotInput{MaxSlots: &maxSlots})
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	return f
}

func (f *fixture) student(t *testing.T, name string) model.Identity {
	t.Helper()
	return model.IdentityOf(testutil.CreateUser(t, f.db, model.RoleStudent, name, "BSCS-2A"))
}

func (f *fixture) request() Request {
	return Request{FacultyID: f.faculty.ID, OfferingID: f.offering.ID, SlotID: f.slot.ID, Window: f.slot.Window}
}

func (f *fixture) book(t *testing.T, student model.Identity) model.ReservationDetail {
	t.Helper()
	d, err := f.engine.RequestReservation(context.Background(), student, f.request())
	if err != nil {
		t.Fatalf("RequestReservation(%s): %v", student.Name, err)
	}
	return d
}

func TestCapacityScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ctx := context.Background()

	first := f.book(t, f.student(t, "Ana"))
	f.book(t, f.student(t, "Ben"))
	if first.Status != model.StatusPending {
		t.Errorf("initial status: got %s, want pending", first.Status)
	}
	if first.StudentName != "Ana" || first.FacultyName != "Prof. Reyes" || first.SubjectCode != "CS101" {
		t.Errorf("resolved names: got %+v", first)
	}
	if first.Location != "Room 204" || first.Section != "BSCS-2A" || first.Window != f.slot.Window {
		t.Errorf("snapshot: got %+v", first.Reservation)
	}

	occ, err := f.engine.GetOccupancy(ctx, f.slot.ID)
	if err != nil {
		t.Fatalf("GetOccupancy: %v", err)
	}
	if occ.Count != 2 || occ.MaxSlots != 2 || occ.Remaining != 0 || !occ.IsFullyBooked {
		t.Errorf("occupancy: got %+v", occ)
	}

	_, err = f.engine.RequestReservation(ctx, f.student(t, "Cy"), f.request())
	if !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Errorf("third request: got %v, want capacity exceeded", err)
	}
}

func TestConcurrentAdmissionAdmitsExactlyCapacity(t *testing.T) {
	t.Parallel()
	const capacity, extra = 3, 5
	f := newFixture(t, capacity)

	students := make([]model.Identity, capacity+extra)
	for i := range students {
		students[i] = f.student(t, fmt.Sprintf("student-%d", i))
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, len(students))
	for i, s := range students {
		wg.Add(1)
		go func(i int, s model.Identity) {
			defer wg.Done()
			<-start
			_, errs[i] = f.engine.RequestReservation(context.Background(), s, f.request())
		}(i, s)
	}
	close(start)
	wg.Wait()

	admitted, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, apperr.ErrCapacityExceeded):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if admitted != capacity || full != extra {
		t.Errorf("admitted/full: got %d/%d, want %d/%d", admitted, full, capacity, extra)
	}
	occ, err := f.engine.GetOccupancy(context.Background(), f.slot.ID)
	if err != nil || occ.Count != capacity {
		t.Errorf("occupancy after race: got %+v, %v", occ, err)
	}
}

func TestDuplicateBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 5)
	ctx := context.Background()
	ana := f.student(t, "Ana")

	d := f.book(t, ana)
	if _, err := f.engine.RequestReservation(ctx, ana, f.request()); !errors.Is(err, apperr.ErrDuplicateBooking) {
		t.Fatalf("second request: got %v, want duplicate booking", err)
	}

	// Once rejected the reservation no longer blocks a new request.
	if _, err := f.engine.SetStatus(ctx, f.faculty, d.ID, "rejected"); err != nil {
		t.Fatalf("SetStatus(rejected): %v", err)
	}
	f.book(t, ana)
}

func TestConcurrentDuplicateRequests(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10)
	ana := f.student(t, "Ana")

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RequestReservation(context.Background(), ana, f.request())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, apperr.ErrDuplicateBooking) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("admitted: got %d, want 1", ok)
	}
}

func TestDuplicateCheckedBeforeCapacity(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	ana := f.student(t, "Ana")
	f.book(t, ana)
	_, err := f.engine.RequestReservation(context.Background(), ana, f.request())
	if !errors.Is(err, apperr.ErrDuplicateBooking) {
		t.Errorf("full slot, same student: got %v, want duplicate booking", err)
	}
}

func TestAdmissionValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ctx := context.Background()
	ana := f.student(t, "Ana")

	other := f.request()
	other.Window.Start = model.MustTime("09:30")
	wrongFaculty := f.request()
	wrongFaculty.FacultyID = f.admin.ID
	missing := f.request()
	missing.OfferingID = 0
	badDay := f.request()
	badDay.Window.Day = "Sun"

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"window mismatch", other, apperr.ErrValidation},
		{"slot of another faculty", wrongFaculty, apperr.ErrValidation},
		{"missing subject", missing, apperr.ErrValidation},
		{"weekend", badDay, apperr.ErrValidation},
		{"unknown slot", Request{FacultyID: f.faculty.ID, OfferingID: f.offering.ID, SlotID: 9999, Window: f.slot.Window}, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := f.engine.RequestReservation(ctx, ana, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := f.engine.RequestReservation(ctx, f.faculty, f.request()); !errors.Is(err, apperr.ErrAuthorization) {
		t.Errorf("faculty requester: got %v, want authorization error", err)
	}

	if err := f.catalog.DeactivateOffering(ctx, f.faculty, f.offering.ID); err != nil {
		t.Fatalf("DeactivateOffering: %v", err)
	}
	if _, err := f.engine.RequestReservation(ctx, ana, f.request()); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("inactive subject: got %v, want validation error", err)
	}
}

func TestAdmissionLockTimeoutIsRetryable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	f.engine.lockWait = 20 * time.Millisecond

	release, err := f.locks.Acquire(context.Background(), admissionKey(f.offering.ID, f.slot.Window))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	_, err = f.engine.RequestReservation(context.Background(), f.student(t, "Ana"), f.request())
	if !errors.Is(err, apperr.ErrDependency) || !apperr.Retryable(err) {
		t.Errorf("held lock: got %v, want retryable dependency error", err)
	}
	occ, _ := f.engine.GetOccupancy(context.Background(), f.slot.ID)
	if occ.Count != 0 {
		t.Errorf("occupancy: got %d, want 0", occ.Count)
	}
}

func TestAdmissionCancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ana := f.student(t, "Ana")

	release, err := f.locks.Acquire(context.Background(), admissionKey(f.offering.ID, f.slot.Window))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = f.engine.RequestReservation(ctx, ana, f.request())
	if !errors.Is(err, apperr.ErrDependency) || !apperr.Retryable(err) {
		t.Errorf("cancelled wait: got %v, want retryable dependency error", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled wait: got %v, want cause context.Canceled", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ana := f.student(t, "Ana")
	_ = f.db.Close()
	_, err := f.engine.RequestReservation(context.Background(), ana, f.request())
	if !errors.Is(err, apperr.ErrDependency) || !apperr.Retryable(err) {
		t.Errorf("closed store: got %v, want retryable dependency error", err)
	}
}

func TestSnapshotSurvivesSlotEdit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	ctx := context.Background()
	d := f.book(t, f.student(t, "Ana"))

	annex := "Annex 3"
	if _, err := f.catalog.UpdateSlot(ctx, f.faculty, f.slot.ID, catalog.SlotInput{Location: &annex}); err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}
	got, err := f.engine.GetReservation(ctx, f.faculty, d.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.Location != "Room 204" {
		t.Errorf("snapshot location: got %q, want Room 204", got.Location)
	}
}

func TestLoweringCapacityBlocksNewAdmissions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)
	ctx := context.Background()
	f.book(t, f.student(t, "Ana"))
	f.book(t, f.student(t, "Ben"))

	one := 1
	if _, err := f.catalog.UpdateSlot(ctx, f.faculty, f.slot.ID, catalog.SlotInput{MaxSlots: &one}); err != nil {
		t.Fatalf("UpdateSlot: %v", err)
	}
	occ, err := f.engine.GetOccupancy(ctx, f.slot.ID)
	if err != nil {
		t.Fatalf("GetOccupancy: %v", err)
	}
	if occ.Count != 2 || occ.Remaining != 0 || !occ.IsFullyBooked {
		t.Errorf("occupancy over capacity: got %+v", occ)
	}
	if _, err := f.engine.RequestReservation(ctx, f.student(t, "Cy"), f.request()); !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Errorf("request after lowering: got %v, want capacity exceeded", err)
	}
}

func TestGetOccupancyUnknownSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 2)
	if _, err := f.engine.GetOccupancy(context.Background(), 424242); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetOccupancy(unknown): got %v, want not found", err)
	}
}

// failingDeletes makes Delete fail for chosen reservation IDs.
type failingDeletes struct {
	orphanStore
	fail map[uint64]bool
}

func (s failingDeletes) Delete(ctx context.Context, id uint64) error {
	if s.fail[id] {
		return errors.New("simulated delete failure")
	}
	return s.orphanStore.Delete(ctx, id)
}

func TestPurgeOrphans(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 5)
	ctx := context.Background()
	users := repository.NewUserRepo(f.db)

	intact := f.book(t, f.student(t, "Ana"))
	goneStudent := f.student(t, "Ben")
	orphanA := f.book(t, goneStudent)
	goneToo := f.student(t, "Cy")
	orphanB := f.book(t, goneToo)

	// A second slot whose deletion orphans its reservation.
	two := 2
	otherSlot, err := f.catalog.CreateSlot(ctx, f.faculty, f.offering.ID, catalog.SlotInput{
		Window:   &model.Window{Day: model.Monday, Start: model.MustTime("09:00"), End: model.MustTime("09:30")},
		MaxSlots: &two,
	})
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	orphanC, err := f.engine.RequestReservation(ctx, f.student(t, "Dee"), Request{
		FacultyID: f.faculty.ID, OfferingID: f.offering.ID, SlotID: otherSlot.ID, Window: otherSlot.Window,
	})
	if err != nil {
		t.Fatalf("RequestReservation(other slot): %v", err)
	}

	if err := users.Delete(ctx, goneStudent.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if err := users.Delete(ctx, goneToo.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if err := repository.NewSlotRepo(f.db).Delete(ctx, otherSlot.ID); err != nil {
		t.Fatalf("delete slot: %v", err)
	}

	if _, err := f.engine.PurgeOrphans(ctx, f.faculty); !errors.Is(err, apperr.ErrAuthorization) {
		t.Errorf("PurgeOrphans(faculty): got %v, want authorization error", err)
	}

	f.engine.orphans = failingDeletes{orphanStore: f.engine.orphans, fail: map[uint64]bool{orphanB.ID: true}}
	report, err := f.engine.PurgeOrphans(ctx, f.admin)
	if err != nil {
		t.Fatalf("PurgeOrphans: %v", err)
	}
	if report.Orphans != 3 || report.Deleted != 2 || report.Failed != 1 {
		t.Errorf("report: got %+v", report)
	}
	byID := map[uint64]PurgeResult{}
	for _, r := range report.Results {
		byID[r.ReservationID] = r
	}
	if r := byID[orphanA.ID]; !r.Deleted || len(r.Missing) != 1 || r.Missing[0] != "student" {
		t.Errorf("orphan A result: got %+v", r)
	}
	if r := byID[orphanB.ID]; r.Deleted || r.Error == "" {
		t.Errorf("orphan B result: got %+v, want failure", r)
	}
	if r := byID[orphanC.ID]; !r.Deleted || len(r.Missing) != 1 || r.Missing[0] != "slot" {
		t.Errorf("orphan C result: got %+v", r)
	}
	if _, ok := byID[intact.ID]; ok {
		t.Errorf("intact reservation reported as orphan")
	}

	if _, err := f.engine.GetReservation(ctx, f.admin, intact.ID); err != nil {
		t.Errorf("intact reservation: %v", err)
	}
	if _, err := f.engine.GetReservation(ctx, f.admin, orphanB.ID); err != nil {
		t.Errorf("failed orphan must remain: %v", err)
	}
	if _, err := f.engine.GetReservation(ctx, f.admin, orphanA.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("purged orphan: got %v, want not found", err)
	}
}
