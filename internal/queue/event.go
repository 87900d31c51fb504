// Package queue defines message payloads exchanged over the message broker
// and the consumer that delivers them.
package queue

import (
	"fmt"
	"time"
)

// StatusChangedEvent is published when a reservation is approved or
// rejected.  It carries resolved display names so that consumers can
// deliver the notification without querying the primary database.
type StatusChangedEvent struct {
	EventID       string    `json:"event_id"`
	ReservationID uint64    `json:"reservation_id"`
	StudentID     uint64    `json:"student_id"`
	StudentEmail  string    `json:"student_email"`
	StudentName   string    `json:"student_name"`
	FacultyName   string    `json:"faculty_name"`
	SubjectCode   string    `json:"subject_code"`
	SubjectName   string    `json:"subject_name"`
	Status        string    `json:"status"`
	Day           string    `json:"day"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Location      string    `json:"location"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Summary renders the event as one human-readable line, shared by the log
// file and chat sinks.
func (ev StatusChangedEvent) Summary() string {
	return fmt.Sprintf("Consultation %s | reservation_id=%d | student=%q <%s> | faculty=%q | subject=\"%s %s\" | when=\"%s %s-%s\" | location=%q",
		ev.Status, ev.ReservationID, ev.StudentName, ev.StudentEmail, ev.FacultyName,
		ev.SubjectCode, ev.SubjectName, ev.Day, ev.Start, ev.End, ev.Location)
}
