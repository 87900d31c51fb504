package model

// Status is the lifecycle state of a reservation.
//
//	pending  -> approved | rejected
//	approved -> completed
//
// rejected and completed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// ParseStatus returns the status named by s and whether it is known.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return st, true
	}
	return "", false
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Occupying reports whether a reservation in this status counts against a
// slot's capacity and blocks a second booking by the same student.
func (s Status) Occupying() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Notifies reports whether entering this status triggers a notification.
func (s Status) Notifies() bool {
	return s == StatusApproved || s == StatusRejected
}

// OccupyingStatuses lists the statuses counted by capacity and duplicate
// checks, in the form repositories bind into IN (...) clauses.
func OccupyingStatuses() []Status {
	return []Status{StatusPending, StatusApproved}
}
