package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/iliyamo/consultation-booking/internal/apperr"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusCompleted, true},
		{StatusRejected, StatusApproved, false},
		{StatusCompleted, StatusPending, false},
		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusApproved, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if !StatusRejected.Terminal() || !StatusCompleted.Terminal() {
		t.Errorf("rejected and completed must be terminal")
	}
	if StatusPending.Terminal() || StatusApproved.Terminal() {
		t.Errorf("pending and approved must not be terminal")
	}
}

func TestStatusOccupying(t *testing.T) {
	t.Parallel()
	for _, st := range []Status{StatusPending, StatusApproved} {
		if !st.Occupying() {
			t.Errorf("%s: want occupying", st)
		}
	}
	for _, st := range []Status{StatusRejected, StatusCompleted} {
		if st.Occupying() {
			t.Errorf("%s: want not occupying", st)
		}
	}
	if _, ok := ParseStatus("cancelled"); ok {
		t.Errorf("ParseStatus(cancelled): want unknown")
	}
}

func TestWindowOverlap(t *testing.T) {
	t.Parallel()
	mon9to10 := Window{Day: Monday, Start: MustTime("09:00"), End: MustTime("10:00")}
	cases := []struct {
		name  string
		other Window
		want  bool
	}{
		{"partial", Window{Monday, MustTime("09:30"), MustTime("10:30")}, true},
		{"contained", Window{Monday, MustTime("09:15"), MustTime("09:45")}, true},
		{"identical", mon9to10, true},
		{"back to back", Window{Monday, MustTime("10:00"), MustTime("11:00")}, false},
		{"before", Window{Monday, MustTime("08:00"), MustTime("09:00")}, false},
		{"other day", Window{Tuesday, MustTime("09:00"), MustTime("10:00")}, false},
	}
	for _, tc := range cases {
		if got := mon9to10.Overlaps(tc.other); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
		if got := tc.other.Overlaps(mon9to10); got != tc.want {
			t.Errorf("%s (reversed): got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWindowValidate(t *testing.T) {
	t.Parallel()
	bad := []Window{
		{Day: "Sat", Start: MustTime("09:00"), End: MustTime("10:00")},
		{Day: Monday, Start: MustTime("10:00"), End: MustTime("10:00")},
		{Day: Monday, Start: MustTime("11:00"), End: MustTime("10:00")},
		{Day: "", Start: 0, End: 60},
	}
	for _, w := range bad {
		if err := w.Validate(); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Validate(%v): got %v, want validation error", w, err)
		}
	}
	if err := (Window{Day: Friday, Start: MustTime("16:00"), End: MustTime("24:00")}).Validate(); err != nil {
		t.Errorf("Validate(Fri 16:00-24:00): %v", err)
	}
}

func TestParseDayAndTime(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Day{"mon": Monday, "Thursday": Thursday, " FRI ": Friday} {
		got, err := ParseDay(in)
		if err != nil || got != want {
			t.Errorf("ParseDay(%q): got %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDay("sunday"); err == nil {
		t.Errorf("ParseDay(sunday): want error")
	}
	for _, in := range []string{"9", "9:5", "25:00", "09:60", "ab:cd"} {
		if _, err := ParseTimeOfDay(in); err == nil {
			t.Errorf("ParseTimeOfDay(%q): want error", in)
		}
	}
	if got := MustTime("9:05").String(); got != "09:05" {
		t.Errorf("String: got %q, want 09:05", got)
	}
}

func TestWindowJSON(t *testing.T) {
	t.Parallel()
	var w Window
	if err := json.Unmarshal([]byte(`{"day":"Wed","start":"13:30","end":"14:15"}`), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if w.Day != Wednesday || w.Start != 13*60+30 || w.End != 14*60+15 {
		t.Errorf("Unmarshal: got %+v", w)
	}
	b, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"day":"Wed","start":"13:30","end":"14:15"}` {
		t.Errorf("Marshal: got %s", b)
	}
	if err := json.Unmarshal([]byte(`{"start":930}`), &w); err == nil {
		t.Errorf("Unmarshal numeric time: want error")
	}
}

func TestNewOccupancy(t *testing.T) {
	t.Parallel()
	o := NewOccupancy(7, 2, 2)
	if !o.IsFullyBooked || o.Remaining != 0 {
		t.Errorf("full slot: got %+v", o)
	}
	o = NewOccupancy(7, 3, 2)
	if o.Remaining != 0 || !o.IsFullyBooked {
		t.Errorf("over-full slot: got %+v", o)
	}
	o = NewOccupancy(7, 1, 3)
	if o.Remaining != 2 || o.IsFullyBooked {
		t.Errorf("partial slot: got %+v", o)
	}
}
