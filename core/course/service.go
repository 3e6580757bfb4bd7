package course

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

var (
	// errors
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")
	ErrAlreadyEnrolled    = core.NewConflictError("student is already enrolled in this course")
	ErrNotLecturer        = core.NewValidationError(errors.New("only lecturers can manage courses"))
	ErrNotStudent         = core.NewValidationError(errors.New("only students can enroll in courses"))
	ErrNotCourseOwner     = core.NewValidationError(errors.New("course is owned by another lecturer"))
)

type (
	Service interface {
		CreateCourse(ctx context.Context, lecturer user.User, nc NewCourse) (Course, error)
		GetCourse(ctx context.Context, id string) (CourseWithLecturer, error)
		ListCourses(ctx context.Context, filter *CourseFilter) ([]Course, error)
		CoursesByLecturer(ctx context.Context, lecturerID string) ([]Course, error)

		Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error)
		ArchiveEnrollment(ctx context.Context, enrollmentID string) (Enrollment, error)
		// EnrollmentsForStudent lists the active enrollments of a student.
		EnrollmentsForStudent(ctx context.Context, studentID string) ([]EnrollmentWithCourse, error)
		// StudentsForCourse lists the students actively enrolled in a course.
		StudentsForCourse(ctx context.Context, courseID string) ([]user.User, error)

		CreateAssignment(ctx context.Context, lecturer user.User, courseID string, na NewAssignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// AssignmentsForCourse lists the assignments of a course ordered by week number.
		AssignmentsForCourse(ctx context.Context, courseID string) ([]Assignment, error)
	}

	service struct {
		repo  Repository
		users user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, users user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()
	return &service{repo: repo, users: users}
}

// IsOwner reports whether usr is the lecturer owning crs.
func IsOwner(crs Course, usr user.User) bool {
	return usr.IsLecturer() && crs.LecturerID == usr.ID
}

func (svc *service) CreateCourse(ctx context.Context, lecturer user.User, nc NewCourse) (Course, error) {
	if !lecturer.IsLecturer() {
		return Course{}, ErrNotLecturer
	}
	crs := Course{
		Title:       nc.Title,
		Code:        strings.ToUpper(nc.Code),
		Language:    nc.Language,
		Description: nc.Description,
		Semester:    nc.Semester,
		LecturerID:  lecturer.ID,
		CreatedAt:   time.Now().UTC(),
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	return crs, errors.Wrap(err, "creating course")
}

func (svc *service) GetCourse(ctx context.Context, id string) (CourseWithLecturer, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return CourseWithLecturer{}, err
	}
	res := CourseWithLecturer{Course: crs}
	lecturer, err := svc.users.GetByID(ctx, crs.LecturerID)
	switch {
	case err == nil:
		res.Lecturer = &lecturer
	case !core.IsNotFound(err):
		return CourseWithLecturer{}, errors.Wrap(err, "getting course lecturer")
	}
	return res, nil
}

func (svc *service) ListCourses(ctx context.Context, filter *CourseFilter) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *service) CoursesByLecturer(ctx context.Context, lecturerID string) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, &CourseFilter{LecturerID: lecturerID})
}

func (svc *service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	student, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !student.IsStudent() {
		return Enrollment{}, ErrNotStudent
	}

	active, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    EnrollmentActive,
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "checking active enrollments")
	}
	if len(active) > 0 {
		return Enrollment{}, ErrAlreadyEnrolled
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     EnrollmentActive,
		EnrolledAt: time.Now().UTC(),
	})
	return enr, errors.Wrap(err, "creating enrollment")
}

func (svc *service) ArchiveEnrollment(ctx context.Context, enrollmentID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !enr.IsActive() {
		return enr, nil
	}
	return svc.repo.SetEnrollmentStatus(ctx, enrollmentID, EnrollmentArchived)
}

func (svc *service) EnrollmentsForStudent(ctx context.Context, studentID string) ([]EnrollmentWithCourse, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: studentID, Status: EnrollmentActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(enrs) == 0 {
		return []EnrollmentWithCourse{}, nil
	}

	ids := make([]string, 0, len(enrs))
	for _, enr := range enrs {
		ids = append(ids, enr.CourseID)
	}
	crss, err := svc.repo.QueryCourses(ctx, &CourseFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled courses")
	}
	byID := make(map[string]Course, len(crss))
	for _, crs := range crss {
		byID[crs.ID] = crs
	}

	res := make([]EnrollmentWithCourse, 0, len(enrs))
	for _, enr := range enrs {
		if crs, ok := byID[enr.CourseID]; ok {
			res = append(res, EnrollmentWithCourse{Enrollment: enr, Course: crs})
		}
	}
	return res, nil
}

func (svc *service) StudentsForCourse(ctx context.Context, courseID string) ([]user.User, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{CourseID: courseID, Status: EnrollmentActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(enrs) == 0 {
		return []user.User{}, nil
	}
	ids := make([]string, 0, len(enrs))
	for _, enr := range enrs {
		ids = append(ids, enr.StudentID)
	}
	ordering := []core.DBOrdering{{Field: "full_name", Ascending: true}}
	return svc.users.Query(ctx, &user.QueryFilter{IDs: ids}, ordering)
}

func (svc *service) CreateAssignment(ctx context.Context, lecturer user.User, courseID string, na NewAssignment) (Assignment, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Assignment{}, err
	}
	if !IsOwner(crs, lecturer) {
		return Assignment{}, ErrNotCourseOwner
	}

	tasks := make([]Task, 0, len(na.Tasks))
	for _, t := range na.Tasks {
		tasks = append(tasks, Task{ID: uuid.NewString(), Description: t.Description, Hint: t.Hint})
	}
	asg := Assignment{
		CourseID:       crs.ID,
		Title:          na.Title,
		Description:    na.Description,
		WeekNumber:     na.WeekNumber,
		DueDate:        na.DueDate.UTC(),
		Tasks:          tasks,
		ExpectedOutput: na.ExpectedOutput,
		CreatedAt:      time.Now().UTC(),
	}
	asg, err = svc.repo.CreateAssignment(ctx, asg)
	return asg, errors.Wrap(err, "creating assignment")
}

func (svc *service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) AssignmentsForCourse(ctx context.Context, courseID string) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, AssignmentFilter{CourseIDs: []string{courseID}})
}
