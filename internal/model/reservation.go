package model

import "time"

// Reservation records a student's request to occupy one unit of a slot's
// capacity (a "consultation").  The window, location and section are
// snapshots taken at creation time; later edits to the slot or the
// student's profile do not alter them.
//
// Fields:
//  ID          – primary key identifier.
//  FacultyID   – faculty member who resolves the reservation.
//  StudentID   – student who requested it.
//  OfferingID  – subject the consultation is about.
//  SlotID      – slot whose capacity it occupies.
//  Window      – snapshot of the slot window.
//  Location    – snapshot of the slot location.
//  Section     – student's section at creation time.
//  Status      – pending, approved, rejected or completed.
//  Purpose     – free text, editable by the faculty member.
//  IsRead      – whether the student has seen the latest resolution.
//  CreatedAt   – creation timestamp.
//  ApprovedAt  – set on transition to approved.
//  CompletedAt – set on transition to completed.
//  UpdatedAt   – last update timestamp.
type Reservation struct {
	ID          uint64     `json:"id"`
	FacultyID   uint64     `json:"faculty_id"`
	StudentID   uint64     `json:"student_id"`
	OfferingID  uint64     `json:"subject_id"`
	SlotID      uint64     `json:"slot_id"`
	Window      Window     `json:"window"`
	Location    string     `json:"location"`
	Section     string     `json:"section"`
	Status      Status     `json:"status"`
	Purpose     string     `json:"purpose"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ReservationDetail is a reservation with its references resolved to
// display fields.  Names are empty when a reference no longer resolves.
type ReservationDetail struct {
	Reservation
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	FacultyName  string `json:"faculty_name"`
	SubjectCode  string `json:"subject_code"`
	SubjectName  string `json:"subject_name"`
}
