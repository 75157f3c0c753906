// Package domain holds the lead funnel state machine. It is pure logic with
// no storage or transport dependencies so the transition rules can be tested
// in isolation.
package domain

import "fmt"

// Status is the lead's position in the funnel. Transitions are monotonic:
// a lead only moves toward StatusFeedbackGiven, never back.
type Status string

const (
	StatusNew           Status = "new"
	StatusLinked        Status = "linked"
	StatusBooked        Status = "booked"
	StatusPaid          Status = "paid"
	StatusFeedbackGiven Status = "feedback_given"
)

var statusRank = map[Status]int{
	StatusNew:           0,
	StatusLinked:        1,
	StatusBooked:        2,
	StatusPaid:          3,
	StatusFeedbackGiven: 4,
}

// Valid reports whether s is a known funnel status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the status position in the funnel ordering.
// Unknown statuses rank below StatusNew.
func (s Status) Rank() int {
	if rank, ok := statusRank[s]; ok {
		return rank
	}
	return -1
}

// Progress classifies an attempted transition from current to target.
type Progress int

const (
	// Advance means the transition moves the lead forward and must be applied.
	Advance Progress = iota
	// AlreadySettled means the lead is at or past the target; re-applying is
	// a no-op (duplicate event delivery).
	AlreadySettled
	// Rejected means the transition is invalid (unknown status).
	Rejected
)

// Classify decides how a requested transition to target relates to the
// current status. Out-of-order collaborator events make forward skips legal
// (a payment webhook may land before the booking confirmation); backward
// moves never are, and are reported as AlreadySettled at this layer. The
// caller decides whether its own operation conflicts.
func Classify(current, target Status) Progress {
	if !current.Valid() || !target.Valid() {
		return Rejected
	}
	if target.Rank() > current.Rank() {
		return Advance
	}
	return AlreadySettled
}

// ErrUnknownStatus is returned when a status value is outside the funnel.
func ErrUnknownStatus(s Status) error {
	return fmt.Errorf("unknown lead status %q", s)
}
