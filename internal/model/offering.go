package model

import "time"

// Offering is a subject a faculty member offers consultations for, with a
// single recurring weekly window.  Offerings are never purged: deactivation
// clears IsActive so that historical reservations keep resolving.
//
// Fields:
//  ID        – primary key identifier.
//  FacultyID – user ID of the owning faculty member.
//  Code      – short subject code (e.g. CS101).
//  Name      – subject title.
//  Window    – day and [start, end) time range.
//  Room      – room or location.
//  IsActive  – false once deactivated.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Offering struct {
	ID        uint64    `json:"id"`
	FacultyID uint64    `json:"faculty_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Window    Window    `json:"window"`
	Room      string    `json:"room"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Capacity bounds for a schedule slot.
const (
	DefaultMaxSlots = 2
	MinMaxSlots     = 1
	MaxMaxSlots     = 10
)

// ScheduleSlot is a bookable, capacity-bounded instance of a weekly window
// for one offering.  Its window and location default to the offering's.
type ScheduleSlot struct {
	ID         uint64    `json:"id"`
	OfferingID uint64    `json:"offering_id"`
	FacultyID  uint64    `json:"faculty_id"`
	Window     Window    `json:"window"`
	Location   string    `json:"location"`
	MaxSlots   int       `json:"max_slots"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Occupancy is the capacity view of a slot.  Count includes pending and
// approved reservations for the slot's (subject, window).
type Occupancy struct {
	SlotID        uint64 `json:"slot_id"`
	Count         int    `json:"count"`
	MaxSlots      int    `json:"max_slots"`
	Remaining     int    `json:"remaining_slots"`
	IsFullyBooked bool   `json:"is_fully_booked"`
}

// NewOccupancy derives the remaining capacity from a count.
func NewOccupancy(slotID uint64, count, maxSlots int) Occupancy {
	remaining := maxSlots - count
	if remaining < 0 {
		remaining = 0
	}
	return Occupancy{
		SlotID:        slotID,
		Count:         count,
		MaxSlots:      maxSlots,
		Remaining:     remaining,
		IsFullyBooked: count >= maxSlots,
	}
}
