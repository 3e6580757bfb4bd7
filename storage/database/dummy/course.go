package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("course.CreateCourse"); err != nil {
		return course.Course{}, err
	}

	if _, ok := repo.db.user[crs.LecturerID]; !ok {
		return course.Course{}, user.ErrNotFound
	}
	crs.ID = uuid.NewString()
	repo.db.course[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("course.GetCourse"); err != nil {
		return course.Course{}, err
	}

	if crs, ok := repo.db.course[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.CourseFilter) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("course.QueryCourses"); err != nil {
		return nil, err
	}

	crss := make([]course.Course, 0, len(repo.db.course))
	for _, crs := range repo.db.course {
		if filter != nil {
			if filter.LecturerID != "" && crs.LecturerID != filter.LecturerID {
				continue
			}
			if len(filter.IDs) > 0 && !contains(filter.IDs, crs.ID) {
				continue
			}
			if search := strings.ToLower(filter.Search); search != "" &&
				!strings.Contains(strings.ToLower(crs.Title), search) &&
				!strings.Contains(strings.ToLower(crs.Code), search) {
				continue
			}
		}
		crss = append(crss, *crs)
	}
	sort.Slice(crss, func(i, j int) bool {
		if crss[i].Code != crss[j].Code {
			return crss[i].Code < crss[j].Code
		}
		return crss[i].CreatedAt.Before(crss[j].CreatedAt)
	})
	return crss, nil
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("course.CreateEnrollment"); err != nil {
		return course.Enrollment{}, err
	}

	if _, ok := repo.db.course[enr.CourseID]; !ok {
		return course.Enrollment{}, course.ErrCourseNotFound
	}
	if _, ok := repo.db.user[enr.StudentID]; !ok {
		return course.Enrollment{}, user.ErrNotFound
	}
	// partial unique index on (student_id, course_id) WHERE status = 'active'
	if enr.IsActive() {
		for _, e := range repo.db.enrollment {
			if e.IsActive() && e.StudentID == enr.StudentID && e.CourseID == enr.CourseID {
				return course.Enrollment{}, course.ErrAlreadyEnrolled
			}
		}
	}
	enr.ID = uuid.NewString()
	repo.db.enrollment[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, id string) (course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("course.GetEnrollment"); err != nil {
		return course.Enrollment{}, err
	}

	if enr, ok := repo.db.enrollment[id]; ok {
		return *enr, nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) SetEnrollmentStatus(_ context.Context, id, status string) (course.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("course.SetEnrollmentStatus"); err != nil {
		return course.Enrollment{}, err
	}

	enr, ok := repo.db.enrollment[id]
	if !ok {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	if status == course.EnrollmentActive && !enr.IsActive() {
		for _, e := range repo.db.enrollment {
			if e.ID != id && e.IsActive() && e.StudentID == enr.StudentID && e.CourseID == enr.CourseID {
				return course.Enrollment{}, course.ErrAlreadyEnrolled
			}
		}
	}
	updated := *enr
	updated.Status = status
	repo.db.enrollment[id] = &updated
	return updated, nil
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("course.QueryEnrollments"); err != nil {
		return nil, err
	}

	enrs := make([]course.Enrollment, 0)
	for _, enr := range repo.db.enrollment {
		if filter.StudentID != "" && enr.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && enr.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && enr.Status != filter.Status {
			continue
		}
		enrs = append(enrs, *enr)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *courseRepository) CreateAssignment(_ context.Context, asg course.Assignment) (course.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("course.CreateAssignment"); err != nil {
		return course.Assignment{}, err
	}

	if _, ok := repo.db.course[asg.CourseID]; !ok {
		return course.Assignment{}, course.ErrCourseNotFound
	}
	if asg.WeekNumber < 1 {
		return course.Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "week_number", Error: "week number must be at least 1"})
	}
	asg.ID = uuid.NewString()
	asg.Tasks = append([]course.Task{}, asg.Tasks...)
	repo.db.assignment[asg.ID] = &asg
	return asg, nil
}

func (repo *courseRepository) GetAssignment(_ context.Context, id string) (course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("course.GetAssignment"); err != nil {
		return course.Assignment{}, err
	}

	if asg, ok := repo.db.assignment[id]; ok {
		return *asg, nil
	}
	return course.Assignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) QueryAssignments(_ context.Context, filter course.AssignmentFilter) ([]course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("course.QueryAssignments"); err != nil {
		return nil, err
	}

	asgs := make([]course.Assignment, 0)
	for _, asg := range repo.db.assignment {
		if len(filter.CourseIDs) > 0 && !contains(filter.CourseIDs, asg.CourseID) {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, asg.ID) {
			continue
		}
		asgs = append(asgs, *asg)
	}
	sort.Slice(asgs, func(i, j int) bool {
		if asgs[i].WeekNumber != asgs[j].WeekNumber {
			return asgs[i].WeekNumber < asgs[j].WeekNumber
		}
		return asgs[i].DueDate.Before(asgs[j].DueDate)
	})
	return asgs, nil
}
