package lab

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

// Submission is unique per (AssignmentID, StudentID).
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Code         string    `json:"code"`
	Language     string    `json:"language"`
	Output       string    `json:"output"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Grade is unique per SubmissionID.
type Grade struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Score        int       `json:"score"` // [0, 100]
	Feedback     string    `json:"feedback"`
	GradedBy     string    `json:"graded_by"`
	GradedAt     time.Time `json:"graded_at"`
}

type AssignmentWithStatus struct {
	course.Assignment
	Status     Status      `json:"status"`
	Submission *Submission `json:"submission,omitempty"`
	Grade      *Grade      `json:"grade,omitempty"`
}

// SubmissionWithDetails is a Submission as the grading screen shows it.
type SubmissionWithDetails struct {
	Submission
	Assignment course.Assignment `json:"assignment"`
	Student    user.User         `json:"student"`
	Grade      *Grade            `json:"grade,omitempty"`
}

// StudentGrade is one line of a student's grade book.
type StudentGrade struct {
	Grade
	Submission Submission        `json:"submission"`
	Assignment course.Assignment `json:"assignment"`
}

type CourseStats struct {
	TotalStudents    int     `json:"total_students"`
	TotalAssignments int     `json:"total_assignments"`
	TotalSubmissions int     `json:"total_submissions"`
	TotalGraded      int     `json:"total_graded"`
	AverageScore     float64 `json:"average_score"` // 0 when TotalGraded is 0
}

// Average returns the average score, ok is false when nothing has been graded yet.
func (cs CourseStats) Average() (avg float64, ok bool) {
	if cs.TotalGraded == 0 {
		return 0, false
	}
	return cs.AverageScore, true
}

// NewSubmission is the payload of a submit request.
type NewSubmission struct {
	Code     string `json:"code"`
	Language string `json:"language" validate:"omitempty,language"`
	Output   string `json:"output"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Language = core.CleanString(ns.Language, true /* lower */)
	return validate.Struct(ns)
}

// NewGrade is the payload of a grade request. Score is a float so that fractional input is
// rejected rather than truncated while decoding.
type NewGrade struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// RunRequest is the payload of a simulated run.
type RunRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type SubmissionFilter struct {
	IDs           []string
	AssignmentIDs []string
	StudentID     string
}

// Repository persists submissions and grades.
type Repository interface {
	// UpsertSubmission inserts sub or replaces the code, language, output and submitted_at of the
	// existing record for (AssignmentID, StudentID). The ID of an existing record is kept.
	// It returns a core.NotFoundError when the assignment or the student does not exist.
	UpsertSubmission(ctx context.Context, sub Submission) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	// GetSubmissionFor returns the submission of a student for an assignment.
	GetSubmissionFor(ctx context.Context, assignmentID, studentID string) (Submission, error)
	// QuerySubmissions returns submissions ordered by submitted_at.
	QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)

	// CreateGrade inserts g, or returns a core.ConflictError when the submission is already graded.
	CreateGrade(ctx context.Context, g Grade) (Grade, error)
	// UpsertGrade inserts g or replaces the score, feedback, graded_by and graded_at of the existing
	// grade of g.SubmissionID. The ID of an existing record is kept.
	UpsertGrade(ctx context.Context, g Grade) (Grade, error)
	GetGradeFor(ctx context.Context, submissionID string) (Grade, error)
	QueryGrades(ctx context.Context, submissionIDs []string) ([]Grade, error)
}
