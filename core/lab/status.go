package lab

import (
	"time"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
)

// Status is the state of an assignment from one student's point of view.
// It is derived on every read and never persisted.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusOverdue    Status = "overdue"
	StatusSubmitted  Status = "submitted"
	StatusGraded     Status = "graded"
)

var AllStatuses = []Status{StatusNotStarted, StatusOverdue, StatusSubmitted, StatusGraded}

func (s Status) String() string { return string(s) }

// Valid reports whether s is one of AllStatuses.
func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// DeriveStatus computes the status of asg for a student, first match wins:
// graded, submitted, overdue (now strictly after the due date), not started.
// A late submission is still submitted: lateness only shows before submitting.
func DeriveStatus(asg course.Assignment, sub *Submission, grade *Grade, now time.Time) Status {
	switch {
	case grade != nil:
		return StatusGraded
	case sub != nil:
		return StatusSubmitted
	case asg.IsPastDue(now):
		return StatusOverdue
	default:
		return StatusNotStarted
	}
}

// WithStatus builds the AssignmentWithStatus view of asg.
func WithStatus(asg course.Assignment, sub *Submission, grade *Grade, now time.Time) AssignmentWithStatus {
	return AssignmentWithStatus{
		Assignment: asg,
		Status:     DeriveStatus(asg, sub, grade, now),
		Submission: sub,
		Grade:      grade,
	}
}
