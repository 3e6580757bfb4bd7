package boltdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type courseRepository struct {
	store *Store
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(store *Store) course.Repository {
	return &courseRepository{store: store}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	err := repo.store.update("course.CreateCourse", func(tx *bbolt.Tx) error {
		if !exists(tx, bucketUsers, crs.LecturerID) {
			return user.ErrNotFound
		}
		crs.ID = uuid.NewString()
		return put(tx, bucketCourses, crs.ID, crs)
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	var crs course.Course
	err := repo.store.view("course.GetCourse", func(tx *bbolt.Tx) error {
		var err error
		crs, err = get[course.Course](tx, bucketCourses, id, course.ErrCourseNotFound)
		return err
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.CourseFilter) ([]course.Course, error) {
	var crss []course.Course
	err := repo.store.view("course.QueryCourses", func(tx *bbolt.Tx) error {
		var err error
		crss, err = list(tx, bucketCourses, func(crs course.Course) bool {
			if filter == nil {
				return true
			}
			if filter.LecturerID != "" && crs.LecturerID != filter.LecturerID {
				return false
			}
			if len(filter.IDs) > 0 && !contains(filter.IDs, crs.ID) {
				return false
			}
			search := strings.ToLower(filter.Search)
			return search == "" ||
				strings.Contains(strings.ToLower(crs.Title), search) ||
				strings.Contains(strings.ToLower(crs.Code), search)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(crss, func(i, j int) bool {
		if crss[i].Code != crss[j].Code {
			return crss[i].Code < crss[j].Code
		}
		return crss[i].CreatedAt.Before(crss[j].CreatedAt)
	})
	return crss, nil
}

// activeEnrollmentExists must run inside the writing transaction.
func activeEnrollmentExists(tx *bbolt.Tx, enr course.Enrollment) (bool, error) {
	dups, err := list(tx, bucketEnrollments, func(e course.Enrollment) bool {
		return e.ID != enr.ID && e.IsActive() && e.StudentID == enr.StudentID && e.CourseID == enr.CourseID
	})
	return len(dups) > 0, err
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, enr course.Enrollment) (course.Enrollment, error) {
	err := repo.store.update("course.CreateEnrollment", func(tx *bbolt.Tx) error {
		if !exists(tx, bucketCourses, enr.CourseID) {
			return course.ErrCourseNotFound
		}
		if !exists(tx, bucketUsers, enr.StudentID) {
			return user.ErrNotFound
		}
		if enr.IsActive() {
			dup, err := activeEnrollmentExists(tx, enr)
			if err != nil {
				return err
			}
			if dup {
				return course.ErrAlreadyEnrolled
			}
		}
		enr.ID = uuid.NewString()
		return put(tx, bucketEnrollments, enr.ID, enr)
	})
	if err != nil {
		return course.Enrollment{}, err
	}
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, id string) (course.Enrollment, error) {
	var enr course.Enrollment
	err := repo.store.view("course.GetEnrollment", func(tx *bbolt.Tx) error {
		var err error
		enr, err = get[course.Enrollment](tx, bucketEnrollments, id, course.ErrEnrollmentNotFound)
		return err
	})
	if err != nil {
		return course.Enrollment{}, err
	}
	return enr, nil
}

func (repo *courseRepository) SetEnrollmentStatus(_ context.Context, id, status string) (course.Enrollment, error) {
	var enr course.Enrollment
	err := repo.store.update("course.SetEnrollmentStatus", func(tx *bbolt.Tx) error {
		var err error
		if enr, err = get[course.Enrollment](tx, bucketEnrollments, id, course.ErrEnrollmentNotFound); err != nil {
			return err
		}
		enr.Status = status
		if enr.IsActive() {
			dup, err := activeEnrollmentExists(tx, enr)
			if err != nil {
				return err
			}
			if dup {
				return course.ErrAlreadyEnrolled
			}
		}
		return put(tx, bucketEnrollments, id, enr)
	})
	if err != nil {
		return course.Enrollment{}, err
	}
	return enr, nil
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	var enrs []course.Enrollment
	err := repo.store.view("course.QueryEnrollments", func(tx *bbolt.Tx) error {
		var err error
		enrs, err = list(tx, bucketEnrollments, func(e course.Enrollment) bool {
			return (filter.StudentID == "" || e.StudentID == filter.StudentID) &&
				(filter.CourseID == "" || e.CourseID == filter.CourseID) &&
				(filter.Status == "" || e.Status == filter.Status)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.Before(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *courseRepository) CreateAssignment(_ context.Context, asg course.Assignment) (course.Assignment, error) {
	if asg.WeekNumber < 1 {
		return course.Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "week_number", Error: "week number must be at least 1"})
	}
	if asg.Tasks == nil {
		asg.Tasks = []course.Task{}
	}
	err := repo.store.update("course.CreateAssignment", func(tx *bbolt.Tx) error {
		if !exists(tx, bucketCourses, asg.CourseID) {
			return course.ErrCourseNotFound
		}
		asg.ID = uuid.NewString()
		return put(tx, bucketAssignments, asg.ID, asg)
	})
	if err != nil {
		return course.Assignment{}, err
	}
	return asg, nil
}

func (repo *courseRepository) GetAssignment(_ context.Context, id string) (course.Assignment, error) {
	var asg course.Assignment
	err := repo.store.view("course.GetAssignment", func(tx *bbolt.Tx) error {
		var err error
		asg, err = get[course.Assignment](tx, bucketAssignments, id, course.ErrAssignmentNotFound)
		return err
	})
	if err != nil {
		return course.Assignment{}, err
	}
	return asg, nil
}

func (repo *courseRepository) QueryAssignments(_ context.Context, filter course.AssignmentFilter) ([]course.Assignment, error) {
	var asgs []course.Assignment
	err := repo.store.view("course.QueryAssignments", func(tx *bbolt.Tx) error {
		var err error
		asgs, err = list(tx, bucketAssignments, func(a course.Assignment) bool {
			return (len(filter.CourseIDs) == 0 || contains(filter.CourseIDs, a.CourseID)) &&
				(len(filter.IDs) == 0 || contains(filter.IDs, a.ID))
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(asgs, func(i, j int) bool {
		if asgs[i].WeekNumber != asgs[j].WeekNumber {
			return asgs[i].WeekNumber < asgs[j].WeekNumber
		}
		return asgs[i].DueDate.Before(asgs[j].DueDate)
	})
	return asgs, nil
}
