package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/consultation-booking/internal/apperr"
)

// Day is a teaching weekday.  Only Monday through Friday are bookable.
type Day string

const (
	Monday    Day = "Mon"
	Tuesday   Day = "Tue"
	Wednesday Day = "Wed"
	Thursday  Day = "Thu"
	Friday    Day = "Fri"
)

var dayNames = map[string]Day{
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
}

// ParseDay accepts short or long English weekday names in any case.
func ParseDay(s string) (Day, error) {
	d, ok := dayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", apperr.New(apperr.ErrValidation, "day must be one of Mon, Tue, Wed, Thu, Fri")
	}
	return d, nil
}

// Valid reports whether d is one of the five canonical values.
func (d Day) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time expressed in minutes after midnight.  It is
// stored as an integer column and rendered as "HH:MM".
type TimeOfDay int

// MinutesPerDay bounds TimeOfDay values; 24:00 is accepted as an end time.
const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses "H:MM" or "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, apperr.New(apperr.ErrValidation, "time %q must be HH:MM", s)
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || len(m) != 2 || hh < 0 || mm < 0 || mm > 59 {
		return 0, apperr.New(apperr.ErrValidation, "time %q must be HH:MM", s)
	}
	t := TimeOfDay(hh*60 + mm)
	if t > MinutesPerDay {
		return 0, apperr.New(apperr.ErrValidation, "time %q is past midnight", s)
	}
	return t, nil
}

// MustTime is ParseTimeOfDay for literals; it panics on malformed input.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return apperr.New(apperr.ErrValidation, "time must be a \"HH:MM\" string")
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Window is a recurring weekly time range [Start, End) on Day.
type Window struct {
	Day   Day       `json:"day"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Validate checks that the day is bookable and the range is non-empty.
func (w Window) Validate() error {
	if !w.Day.Valid() {
		return apperr.New(apperr.ErrValidation, "day must be one of Mon, Tue, Wed, Thu, Fri")
	}
	if w.Start < 0 || w.End > MinutesPerDay {
		return apperr.New(apperr.ErrValidation, "window must lie within one day")
	}
	if w.Start >= w.End {
		return apperr.New(apperr.ErrValidation, "window start must be before end")
	}
	return nil
}

// Overlaps reports whether the half-open intervals intersect on the same day.
// Back-to-back windows (one ends when the other starts) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Day == o.Day && w.Start < o.End && o.Start < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", w.Day, w.Start, w.End)
}
