package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

// Languages (editor syntax highlighting only; never checked against submitted code)
const (
	LangPython = "python"
	LangJava   = "java"
	LangCpp    = "cpp"
)

// Enrollment statuses
const (
	EnrollmentActive   = "active"
	EnrollmentArchived = "archived"
)

var AllLanguages = []string{LangPython, LangJava, LangCpp}

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	Description string    `json:"description"`
	Semester    string    `json:"semester"`
	LecturerID  string    `json:"lecturer_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// CourseWithLecturer is a Course along with its owner.
type CourseWithLecturer struct {
	Course
	Lecturer *user.User `json:"lecturer,omitempty"`
}

type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	CourseID   string    `json:"course_id"`
	Status     string    `json:"status"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func (e Enrollment) IsActive() bool { return e.Status == EnrollmentActive }

// EnrollmentWithCourse is what a student sees on their dashboard.
type EnrollmentWithCourse struct {
	Enrollment
	Course Course `json:"course"`
}

type Task struct {
	ID          string `json:"id"`
	Description string `json:"description" validate:"required,notblank"`
	Hint        string `json:"hint,omitempty"`
}

// Assignment is immutable once created.
type Assignment struct {
	ID             string    `json:"id"`
	CourseID       string    `json:"course_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	WeekNumber     int       `json:"week_number"`
	DueDate        time.Time `json:"due_date"`
	Tasks          []Task    `json:"tasks"`
	ExpectedOutput *string   `json:"expected_output,omitempty"` // only used by simulated runs
	CreatedAt      time.Time `json:"created_at"`
}

// IsPastDue reports whether `now` is strictly after the due date.
func (a Assignment) IsPastDue(now time.Time) bool {
	return now.After(a.DueDate)
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Code        string `json:"code" validate:"required,coursecode"`
	Language    string `json:"language" validate:"required,language"`
	Description string `json:"description"`
	Semester    string `json:"semester" validate:"max=64"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Code = core.CleanString(nc.Code)
	nc.Language = core.CleanString(nc.Language, true /* lower */)
	nc.Description = core.CleanString(nc.Description)
	nc.Semester = core.CleanString(nc.Semester)
	return validate.Struct(nc)
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title          string    `json:"title" validate:"required,notblank,max=255"`
	Description    string    `json:"description"`
	WeekNumber     int       `json:"week_number" validate:"required,min=1"`
	DueDate        time.Time `json:"due_date" validate:"required"`
	Tasks          []Task    `json:"tasks" validate:"dive"`
	ExpectedOutput *string   `json:"expected_output"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	for i := range na.Tasks {
		na.Tasks[i].Description = core.CleanString(na.Tasks[i].Description)
		na.Tasks[i].Hint = core.CleanString(na.Tasks[i].Hint)
	}
	return validate.Struct(na)
}

type CourseFilter struct {
	Search     string   `query:"search"` // case-insensitive match on Title or Code
	LecturerID string   `query:"lecturer_id"`
	IDs        []string `query:"id"`
}

func (cf *CourseFilter) Clean() {
	cf.Search = core.CleanString(cf.Search)
	cf.LecturerID = core.CleanString(cf.LecturerID)
}

type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    string // empty matches any
}

type AssignmentFilter struct {
	CourseIDs []string
	IDs       []string
}

// Repository persists courses, enrollments and assignments.
type Repository interface {
	CreateCourse(ctx context.Context, crs Course) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	// QueryCourses returns courses ordered by code.
	QueryCourses(ctx context.Context, filter *CourseFilter) ([]Course, error)

	// CreateEnrollment returns a core.ConflictError when an active enrollment already exists for the pair.
	CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
	GetEnrollment(ctx context.Context, id string) (Enrollment, error)
	SetEnrollmentStatus(ctx context.Context, id, status string) (Enrollment, error)
	QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)

	CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	// QueryAssignments returns assignments ordered by week number then due date.
	QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
}
