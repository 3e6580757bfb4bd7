package lab

import (
	"context"
	"time"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

// Event types
const (
	EventSubmissionSubmitted = "submission.submitted"
	EventGradeRecorded       = "grade.recorded"
)

// Event is published after a successful write.
type Event struct {
	Type         string    `json:"type"`
	CourseID     string    `json:"course_id"`
	AssignmentID string    `json:"assignment_id"`
	SubmissionID string    `json:"submission_id"`
	StudentID    string    `json:"student_id"`
	Score        *int      `json:"score,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Key is used to partition events: every event of a submission lands in order on the same partition.
func (e Event) Key() string { return e.SubmissionID }

type (
	// EventPublisher is any service that can broadcast lab events.
	EventPublisher interface {
		Publish(ctx context.Context, events ...Event) error
	}

	// StatsCache keeps computed CourseStats between writes.
	StatsCache interface {
		// GetStats returns ok=false on a miss.
		GetStats(ctx context.Context, courseID string) (stats CourseStats, ok bool, err error)
		SetStats(ctx context.Context, courseID string, stats CourseStats) error
		InvalidateStats(ctx context.Context, courseID string) error
	}
)

type noopEvents struct{}

func (noopEvents) Publish(context.Context, ...Event) error { return nil }

type noopCache struct{}

func (noopCache) GetStats(context.Context, string) (CourseStats, bool, error) {
	return CourseStats{}, false, nil
}
func (noopCache) SetStats(context.Context, string, CourseStats) error { return nil }
func (noopCache) InvalidateStats(context.Context, string) error       { return nil }

type noopMailer struct{}

func (noopMailer) SendMessages(...*core.EmailMessage) {}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}
