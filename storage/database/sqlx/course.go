package sqlxrepos

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
)

const (
	courseColumns     = `id, title, code, language, description, semester, lecturer_id, created_at`
	enrollmentColumns = `id, student_id, course_id, status, enrolled_at`
	assignmentColumns = `id, course_id, title, description, week_number, due_date, tasks, expected_output, created_at`

	enrollmentActiveUniq = "enrollment_active_uniq"
)

type courseRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Code        string    `db:"code"`
	Language    string    `db:"language"`
	Description string    `db:"description"`
	Semester    string    `db:"semester"`
	LecturerID  string    `db:"lecturer_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r courseRow) toCourse() course.Course {
	crs := course.Course(r)
	crs.CreatedAt = crs.CreatedAt.UTC()
	return crs
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	StudentID  string    `db:"student_id"`
	CourseID   string    `db:"course_id"`
	Status     string    `db:"status"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

func (r enrollmentRow) toEnrollment() course.Enrollment {
	enr := course.Enrollment(r)
	enr.EnrolledAt = enr.EnrolledAt.UTC()
	return enr
}

// taskList is stored as a JSONB array. pq sends []byte parameters as bytea, so Value returns a string.
type taskList []course.Task

func (tl taskList) Value() (driver.Value, error) {
	if tl == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]course.Task(tl))
	if err != nil {
		return nil, errors.Wrap(err, "encoding tasks")
	}
	return string(raw), nil
}

func (tl *taskList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*tl = taskList{}
		return nil
	default:
		return errors.Errorf("cannot scan %T into tasks", src)
	}
	return errors.Wrap(json.Unmarshal(raw, (*[]course.Task)(tl)), "decoding tasks")
}

type assignmentRow struct {
	ID             string      `db:"id"`
	CourseID       string      `db:"course_id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	WeekNumber     int         `db:"week_number"`
	DueDate        time.Time   `db:"due_date"`
	Tasks          taskList    `db:"tasks"`
	ExpectedOutput null.String `db:"expected_output"`
	CreatedAt      time.Time   `db:"created_at"`
}

func newAssignmentRow(asg course.Assignment) assignmentRow {
	return assignmentRow{
		ID:             asg.ID,
		CourseID:       asg.CourseID,
		Title:          asg.Title,
		Description:    asg.Description,
		WeekNumber:     asg.WeekNumber,
		DueDate:        asg.DueDate.UTC(),
		Tasks:          taskList(asg.Tasks),
		ExpectedOutput: null.StringFromPtr(asg.ExpectedOutput),
		CreatedAt:      asg.CreatedAt.UTC(),
	}
}

func (r assignmentRow) toAssignment() course.Assignment {
	tasks := []course.Task(r.Tasks)
	if tasks == nil {
		tasks = []course.Task{}
	}
	return course.Assignment{
		ID:             r.ID,
		CourseID:       r.CourseID,
		Title:          r.Title,
		Description:    r.Description,
		WeekNumber:     r.WeekNumber,
		DueDate:        r.DueDate.UTC(),
		Tasks:          tasks,
		ExpectedOutput: r.ExpectedOutput.Ptr(),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.NewString()
	crs.CreatedAt = crs.CreatedAt.UTC()
	var row courseRow
	err := namedGet(ctx, repo.db, &row, `
		INSERT INTO course (`+courseColumns+`)
		VALUES (:id, :title, :code, :language, :description, :semester, :lecturer_id, :created_at)
		RETURNING `+courseColumns,
		courseRow(crs),
	)
	if err != nil {
		return course.Course{}, dbError(err, "course.CreateCourse", nil)
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM course WHERE id = $1`, id)
	if err != nil {
		return course.Course{}, dbError(err, "course.GetCourse", course.ErrCourseNotFound)
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.CourseFilter) ([]course.Course, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + strings.ToLower(filter.Search) + "%"
			w.add("(LOWER(title) LIKE ? OR LOWER(code) LIKE ?)", pattern, pattern)
		}
		if filter.LecturerID != "" {
			w.add("lecturer_id::text = ?", filter.LecturerID)
		}
		if len(filter.IDs) > 0 {
			if err := w.in("id::text", filter.IDs); err != nil {
				return nil, dbError(err, "course.QueryCourses", nil)
			}
		}
	}

	q, args := w.build(repo.db, `SELECT `+courseColumns+` FROM course`, "ORDER BY code, created_at")
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, dbError(err, "course.QueryCourses", nil)
	}
	crss := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		crss = append(crss, r.toCourse())
	}
	return crss, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	enr.ID = uuid.NewString()
	enr.EnrolledAt = enr.EnrolledAt.UTC()
	var row enrollmentRow
	err := namedGet(ctx, repo.db, &row, `
		INSERT INTO enrollment (`+enrollmentColumns+`)
		VALUES (:id, :student_id, :course_id, :status, :enrolled_at)
		RETURNING `+enrollmentColumns,
		enrollmentRow(enr),
	)
	if err != nil {
		if isUniqueViolation(err, enrollmentActiveUniq) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, dbError(err, "course.CreateEnrollment", nil)
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, id string) (course.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+enrollmentColumns+` FROM enrollment WHERE id = $1`, id)
	if err != nil {
		return course.Enrollment{}, dbError(err, "course.GetEnrollment", course.ErrEnrollmentNotFound)
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) SetEnrollmentStatus(ctx context.Context, id, status string) (course.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE enrollment SET status = $2 WHERE id = $1 RETURNING `+enrollmentColumns, id, status)
	if err != nil {
		if isUniqueViolation(err, enrollmentActiveUniq) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, dbError(err, "course.SetEnrollmentStatus", course.ErrEnrollmentNotFound)
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	q, args := w.build(repo.db, `SELECT `+enrollmentColumns+` FROM enrollment`, "ORDER BY enrolled_at")
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, dbError(err, "course.QueryEnrollments", nil)
	}
	enrs := make([]course.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.toEnrollment())
	}
	return enrs, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment) (course.Assignment, error) {
	asg.ID = uuid.NewString()
	var created assignmentRow
	err := namedGet(ctx, repo.db, &created, `
		INSERT INTO assignment (`+assignmentColumns+`)
		VALUES (:id, :course_id, :title, :description, :week_number, :due_date, :tasks, :expected_output, :created_at)
		RETURNING `+assignmentColumns,
		newAssignmentRow(asg),
	)
	if err != nil {
		return course.Assignment{}, dbError(err, "course.CreateAssignment", nil)
	}
	return created.toAssignment(), nil
}

func (repo *courseRepository) GetAssignment(ctx context.Context, id string) (course.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+assignmentColumns+` FROM assignment WHERE id = $1`, id)
	if err != nil {
		return course.Assignment{}, dbError(err, "course.GetAssignment", course.ErrAssignmentNotFound)
	}
	return row.toAssignment(), nil
}

func (repo *courseRepository) QueryAssignments(ctx context.Context, filter course.AssignmentFilter) ([]course.Assignment, error) {
	var w where
	if len(filter.CourseIDs) > 0 {
		if err := w.in("course_id::text", filter.CourseIDs); err != nil {
			return nil, dbError(err, "course.QueryAssignments", nil)
		}
	}
	if len(filter.IDs) > 0 {
		if err := w.in("id::text", filter.IDs); err != nil {
			return nil, dbError(err, "course.QueryAssignments", nil)
		}
	}

	q, args := w.build(repo.db, `SELECT `+assignmentColumns+` FROM assignment`, "ORDER BY week_number, due_date")
	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, dbError(err, "course.QueryAssignments", nil)
	}
	asgs := make([]course.Assignment, 0, len(rows))
	for _, r := range rows {
		asgs = append(asgs, r.toAssignment())
	}
	return asgs, nil
}
