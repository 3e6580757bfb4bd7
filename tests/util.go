// Package testutil builds fixtures straight through the repositories, bypassing services.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd, role string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:   name,
		Email:      email,
		Role:       role,
		Department: "Computer Science",
		CreatedAt:  tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, matric string) user.User {
	t.Helper()

	usr := CreateUser(t, repo, name, email, "", user.RoleStudent)
	usr.MatricNumber = matric
	usr.Level = "300"
	usr, err := repo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

func CreateLecturer(t *testing.T, repo user.Repository, name, email string) user.User {
	t.Helper()
	return CreateUser(t, repo, name, email, "", user.RoleLecturer)
}

func CreateCourse(t *testing.T, repo course.Repository, lecturer user.User, code, title string) course.Course {
	t.Helper()

	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:      title,
		Code:       code,
		Language:   course.LangPython,
		Semester:   "2025/2026 First",
		LecturerID: lecturer.ID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func Enroll(t *testing.T, repo course.Repository, student user.User, crs course.Course, status ...string) course.Enrollment {
	t.Helper()

	st := course.EnrollmentActive
	if len(status) > 0 {
		st = status[0]
	}
	enr, err := repo.CreateEnrollment(context.Background(), course.Enrollment{
		StudentID:  student.ID,
		CourseID:   crs.ID,
		Status:     st,
		EnrolledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

func CreateAssignment(t *testing.T, repo course.Repository, crs course.Course, week int, due time.Time, expectedOutput ...string) course.Assignment {
	t.Helper()

	asg := course.Assignment{
		CourseID:    crs.ID,
		Title:       "Variables and types",
		Description: "Declare variables and print them.",
		WeekNumber:  week,
		DueDate:     due.UTC(),
		Tasks: []course.Task{
			{ID: "task-1", Description: "Declare an integer variable named age and output it.", Hint: "Use print()"},
		},
		CreatedAt: time.Now().UTC(),
	}
	if len(expectedOutput) > 0 {
		asg.ExpectedOutput = &expectedOutput[0]
	}
	asg, err := repo.CreateAssignment(context.Background(), asg)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

func Submit(t *testing.T, repo lab.Repository, asg course.Assignment, student user.User, code string, at ...time.Time) lab.Submission {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(at) > 0 {
		tstamp = at[0].UTC()
	}
	sub, err := repo.UpsertSubmission(context.Background(), lab.Submission{
		AssignmentID: asg.ID,
		StudentID:    student.ID,
		Code:         code,
		Language:     course.LangPython,
		Output:       "Hello World!",
		SubmittedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return sub
}

func Grade(t *testing.T, repo lab.Repository, sub lab.Submission, grader user.User, score int, feedback string) lab.Grade {
	t.Helper()

	g, err := repo.UpsertGrade(context.Background(), lab.Grade{
		SubmissionID: sub.ID,
		Score:        score,
		Feedback:     feedback,
		GradedBy:     grader.ID,
		GradedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	return g
}
