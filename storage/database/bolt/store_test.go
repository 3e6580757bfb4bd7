package boltdb_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	boltdb "github.com/BISHOP-X/BABCOCK-VPL/storage/database/bolt"
	"github.com/BISHOP-X/BABCOCK-VPL/tests"
)

func open(t *testing.T, path string) *boltdb.Store {
	t.Helper()
	store, err := boltdb.Open(path)
	require.NoError(t, err)
	return store
}

func setup(t *testing.T) (user.Repository, course.Repository, lab.Repository) {
	t.Helper()
	store := open(t, filepath.Join(t.TempDir(), "vpl.db"))
	t.Cleanup(func() { _ = store.Close() })
	return boltdb.NewUserRepository(store), boltdb.NewCourseRepository(store), boltdb.NewLabRepository(store)
}

func TestUserRepository(t *testing.T) {
	users, _, _ := setup(t)
	ctx := context.Background()

	lecturer := testutil.CreateUser(t, users, "Dr. Adebayo", "adebayo@babcock.test", "Lab#Work2026", user.RoleLecturer)
	student := testutil.CreateStudent(t, users, "Chioma Obi", "chioma@babcock.test", "21/0345")

	got, err := users.GetUser(ctx, user.GetFilter{Email: "adebayo@babcock.test"})
	require.NoError(t, err)
	assert.Equal(t, lecturer.ID, got.ID)
	assert.NoError(t, got.CheckPassword("Lab#Work2026"), "password hash must survive encoding")

	_, err = users.CreateUser(ctx, user.User{Email: "chioma@babcock.test", FullName: "Dup", Role: user.RoleStudent})
	assert.True(t, core.IsConflict(err), err)
	assert.Equal(t, user.ErrEmailExists, users.CheckEmailUniqueness(ctx, "chioma@babcock.test"))

	// the email index follows updates
	student.Email = "c.obi@babcock.test"
	_, err = users.UpdateUser(ctx, student)
	require.NoError(t, err)
	assert.NoError(t, users.CheckEmailUniqueness(ctx, "chioma@babcock.test"))
	got, err = users.GetUser(ctx, user.GetFilter{Email: "c.obi@babcock.test"})
	require.NoError(t, err)
	assert.Equal(t, "21/0345", got.MatricNumber)

	_, err = users.GetUser(ctx, user.GetFilter{ID: "nope"})
	assert.Equal(t, user.ErrNotFound, err)

	found, err := users.QueryUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleStudent}}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, student.ID, found[0].ID)
}

func TestCourseRepository(t *testing.T) {
	users, courses, _ := setup(t)
	ctx := context.Background()
	lecturer := testutil.CreateLecturer(t, users, "Dr. Adebayo", "adebayo@babcock.test")
	student := testutil.CreateStudent(t, users, "Chioma Obi", "chioma@babcock.test", "21/0345")
	crs := testutil.CreateCourse(t, courses, lecturer, "COSC 301", "Data Structures")

	enr := testutil.Enroll(t, courses, student, crs)
	_, err := courses.CreateEnrollment(ctx, course.Enrollment{StudentID: student.ID, CourseID: crs.ID, Status: course.EnrollmentActive})
	assert.Equal(t, course.ErrAlreadyEnrolled, err)

	_, err = courses.SetEnrollmentStatus(ctx, enr.ID, course.EnrollmentArchived)
	require.NoError(t, err)
	again := testutil.Enroll(t, courses, student, crs)
	_, err = courses.SetEnrollmentStatus(ctx, enr.ID, course.EnrollmentActive)
	assert.Equal(t, course.ErrAlreadyEnrolled, err, "reactivating would duplicate %s", again.ID)

	due := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	a2 := testutil.CreateAssignment(t, courses, crs, 2, due, "Hello World!")
	a1 := testutil.CreateAssignment(t, courses, crs, 1, due)
	asgs, err := courses.QueryAssignments(ctx, course.AssignmentFilter{CourseIDs: []string{crs.ID}})
	require.NoError(t, err)
	require.Len(t, asgs, 2)
	assert.Equal(t, a1.ID, asgs[0].ID)
	assert.Equal(t, a2.ID, asgs[1].ID)
	require.NotNil(t, asgs[1].ExpectedOutput)

	_, err = courses.CreateAssignment(ctx, course.Assignment{CourseID: "nope", WeekNumber: 1, DueDate: due})
	assert.Equal(t, course.ErrCourseNotFound, err)
	_, err = courses.CreateAssignment(ctx, course.Assignment{CourseID: crs.ID, WeekNumber: 0, DueDate: due})
	assert.True(t, core.IsValidation(err), err)
}

func TestLabRepository(t *testing.T) {
	users, courses, labs := setup(t)
	ctx := context.Background()
	lecturer := testutil.CreateLecturer(t, users, "Dr. Adebayo", "adebayo@babcock.test")
	student := testutil.CreateStudent(t, users, "Chioma Obi", "chioma@babcock.test", "21/0345")
	crs := testutil.CreateCourse(t, courses, lecturer, "COSC 301", "Data Structures")
	asg := testutil.CreateAssignment(t, courses, crs, 1, time.Now().Add(time.Hour))

	t1 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	first := testutil.Submit(t, labs, asg, student, "print('v1')", t1.Add(time.Minute))
	stale := testutil.Submit(t, labs, asg, student, "print('v2')", t1)
	assert.Equal(t, first.ID, stale.ID)
	assert.Equal(t, "print('v2')", stale.Code)
	assert.True(t, t1.Add(time.Minute).Equal(stale.SubmittedAt))

	got, err := labs.GetSubmissionFor(ctx, asg.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "print('v2')", got.Code)

	_, err = labs.UpsertSubmission(ctx, lab.Submission{AssignmentID: "nope", StudentID: student.ID, SubmittedAt: t1})
	assert.Equal(t, course.ErrAssignmentNotFound, err)

	g, err := labs.CreateGrade(ctx, lab.Grade{SubmissionID: first.ID, Score: 85, GradedBy: lecturer.ID, GradedAt: time.Now()})
	require.NoError(t, err)
	_, err = labs.CreateGrade(ctx, lab.Grade{SubmissionID: first.ID, Score: 20, GradedBy: lecturer.ID, GradedAt: time.Now()})
	assert.Equal(t, lab.ErrAlreadyGraded, err)

	regraded, err := labs.UpsertGrade(ctx, lab.Grade{SubmissionID: first.ID, Score: 90, GradedBy: lecturer.ID, GradedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, g.ID, regraded.ID)

	grades, err := labs.QueryGrades(ctx, []string{first.ID, first.ID, "nope"})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 90, grades[0].Score)

	_, err = labs.UpsertGrade(ctx, lab.Grade{SubmissionID: first.ID, Score: -1, GradedBy: lecturer.ID})
	assert.True(t, core.IsValidation(err), err)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpl.db")
	store := open(t, path)
	usr := testutil.CreateStudent(t, boltdb.NewUserRepository(store), "Chioma Obi", "chioma@babcock.test", "21/0345")
	require.NoError(t, store.Close())

	store = open(t, path)
	defer func() { _ = store.Close() }()
	got, err := boltdb.NewUserRepository(store).GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, usr.Email, got.Email)
}

func TestLabRepository_ConcurrentUpsert(t *testing.T) {
	users, courses, labs := setup(t)
	lecturer := testutil.CreateLecturer(t, users, "Dr. Adebayo", "adebayo@babcock.test")
	student := testutil.CreateStudent(t, users, "Chioma Obi", "chioma@babcock.test", "21/0345")
	crs := testutil.CreateCourse(t, courses, lecturer, "COSC 301", "Data Structures")
	asg := testutil.CreateAssignment(t, courses, crs, 1, time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := labs.UpsertSubmission(context.Background(), lab.Submission{
				AssignmentID: asg.ID,
				StudentID:    student.ID,
				Language:     course.LangPython,
				SubmittedAt:  time.Now(),
			})
			assert.NoError(t, err)
			ids[i] = sub.ID
		}(i)
	}
	wg.Wait()

	subs, err := labs.QuerySubmissions(context.Background(), lab.SubmissionFilter{StudentID: student.ID})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	for _, id := range ids {
		assert.Equal(t, subs[0].ID, id)
	}
}
