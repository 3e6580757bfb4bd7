package tests

import (
	"context"
	"encoding/csv"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/tests"
)

func Test_courseApi_create(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")

	valid := marchallObj(t, course.NewCourse{Title: "Data Structures", Code: "cosc 301", Language: "Python", Semester: "2025/2026 First"})

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/courses", body: valid, wantCode: http.StatusUnauthorized},
		{name: "lecturer required", method: http.MethodPost, path: "/v1/courses", body: valid, token: getToken(t, e, student), wantCode: http.StatusForbidden},
		{
			name: "invalid", method: http.MethodPost, path: "/v1/courses", token: getToken(t, e, lecturer),
			body:     marchallObj(t, course.NewCourse{Title: " ", Code: "301", Language: "cobol"}),
			wantCode: http.StatusBadRequest,
		},
		{name: "created", method: http.MethodPost, path: "/v1/courses", body: valid, token: getToken(t, e, lecturer), wantCode: http.StatusCreated},
	}
	runHTTPTests(t, e, tests)

	courses, err := e.crsRepo.QueryCourses(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "COSC 301", courses[0].Code)
	assert.Equal(t, course.LangPython, courses[0].Language)
	assert.Equal(t, lecturer.ID, courses[0].LecturerID)
}

func Test_courseApi_retrieve(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	crs := testutil.CreateCourse(t, e.crsRepo, lecturer, "COSC 301", "Data Structures")

	tests := []httpTest{
		{name: "unknown", path: "/v1/courses/nope", token: getToken(t, e, student), wantCode: http.StatusNotFound},
		{
			name: "with lecturer", path: "/v1/courses/" + crs.ID, token: getToken(t, e, student), wantCode: http.StatusOK,
			wantData: marchallObj(t, course.CourseWithLecturer{Course: crs, Lecturer: &lecturer}),
		},
		{name: "list", path: "/v1/courses", token: getToken(t, e, student), wantCode: http.StatusOK, wantData: marchallObj(t, []course.Course{crs})},
	}
	runHTTPTests(t, e, tests)
}

func Test_courseApi_enroll(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	crs := testutil.CreateCourse(t, e.crsRepo, lecturer, "COSC 301", "Data Structures")

	studentToken := getToken(t, e, student)
	path := "/v1/courses/" + crs.ID + "/enrollments"

	tests := []httpTest{
		{name: "student required", method: http.MethodPost, path: path, token: getToken(t, e, lecturer), wantCode: http.StatusForbidden},
		{name: "unknown course", method: http.MethodPost, path: "/v1/courses/nope/enrollments", token: studentToken, wantCode: http.StatusNotFound},
		{name: "enrolled", method: http.MethodPost, path: path, token: studentToken, wantCode: http.StatusCreated},
		{
			name: "already enrolled", method: http.MethodPost, path: path, token: studentToken, wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: course.ErrAlreadyEnrolled.Error()}),
		},
	}
	runHTTPTests(t, e, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/me/enrollments", studentToken)
	e.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var enrs []course.EnrollmentWithCourse
	unmarshal(t, rec, &enrs)
	require.Len(t, enrs, 1)
	assert.Equal(t, crs.ID, enrs[0].Course.ID)
}

func Test_courseApi_ownerOnly(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	owner := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	other := testutil.CreateLecturer(t, e.usrRepo, "Dr. Bello", "bello@babcock.test")
	crs := testutil.CreateCourse(t, e.crsRepo, owner, "COSC 301", "Data Structures")
	testutil.Enroll(t, e.crsRepo, student, crs)

	base := "/v1/courses/" + crs.ID
	newAsg := marchallObj(t, course.NewAssignment{
		Title:      "Linked lists",
		WeekNumber: 2,
		DueDate:    time.Now().Add(7 * 24 * time.Hour),
		Tasks:      []course.Task{{Description: "Reverse a linked list"}},
	})

	var tests []httpTest
	for _, p := range []string{"/students", "/stats", "/grades.csv"} {
		tests = append(tests,
			httpTest{name: "student" + p, path: base + p, token: getToken(t, e, student), wantCode: http.StatusForbidden},
			httpTest{name: "other lecturer" + p, path: base + p, token: getToken(t, e, other), wantCode: http.StatusForbidden},
			httpTest{name: "owner" + p, path: base + p, token: getToken(t, e, owner), wantCode: http.StatusOK},
		)
	}
	tests = append(tests,
		httpTest{name: "other lecturer creates assignment", method: http.MethodPost, path: base + "/assignments", body: newAsg, token: getToken(t, e, other), wantCode: http.StatusForbidden},
		httpTest{
			name: "week 0", method: http.MethodPost, path: base + "/assignments", token: getToken(t, e, owner), wantCode: http.StatusBadRequest,
			body: marchallObj(t, course.NewAssignment{Title: "Intro", WeekNumber: 0, DueDate: time.Now()}),
		},
		httpTest{name: "owner creates assignment", method: http.MethodPost, path: base + "/assignments", body: newAsg, token: getToken(t, e, owner), wantCode: http.StatusCreated},
	)
	runHTTPTests(t, e, tests)
}

func Test_courseApi_assignments(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	crs := testutil.CreateCourse(t, e.crsRepo, lecturer, "COSC 301", "Data Structures")
	testutil.Enroll(t, e.crsRepo, student, crs)

	now := time.Now()
	week1 := testutil.CreateAssignment(t, e.crsRepo, crs, 1, now.Add(-24*time.Hour), "42")
	week2 := testutil.CreateAssignment(t, e.crsRepo, crs, 2, now.Add(-time.Hour))
	week3 := testutil.CreateAssignment(t, e.crsRepo, crs, 3, now.Add(24*time.Hour))
	week4 := testutil.CreateAssignment(t, e.crsRepo, crs, 4, now.Add(48*time.Hour))
	testutil.Grade(t, e.labRepo, testutil.Submit(t, e.labRepo, week1, student, "print(42)"), lecturer, 90, "Great")
	testutil.Submit(t, e.labRepo, week3, student, "print(1)")

	path := "/v1/courses/" + crs.ID + "/assignments"

	t.Run("student sees statuses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, e, student))
		e.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var asgs []lab.AssignmentWithStatus
		unmarshal(t, rec, &asgs)
		require.Len(t, asgs, 4)

		want := map[string]lab.Status{
			week1.ID: lab.StatusGraded,
			week2.ID: lab.StatusOverdue,
			week3.ID: lab.StatusSubmitted,
			week4.ID: lab.StatusNotStarted,
		}
		for _, asg := range asgs {
			assert.Equal(t, want[asg.ID], asg.Status, "week %d", asg.WeekNumber)
		}
		require.NotNil(t, asgs[0].ExpectedOutput)
		assert.Equal(t, "42", *asgs[0].ExpectedOutput)
		require.NotNil(t, asgs[0].Grade)
		assert.Equal(t, 90, asgs[0].Grade.Score)
	})

	t.Run("lecturer sees assignments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, e, lecturer))
		e.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var asgs []course.Assignment
		unmarshal(t, rec, &asgs)
		require.Len(t, asgs, 4)
		require.NotNil(t, asgs[0].ExpectedOutput)
		assert.Equal(t, "42", *asgs[0].ExpectedOutput)
	})
}

func Test_courseApi_stats(t *testing.T) {
	e := setup(t)
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	ada := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	musa := testutil.CreateStudent(t, e.usrRepo, "Musa Bello", "musa@babcock.test", "21/0346")
	crs := testutil.CreateCourse(t, e.crsRepo, lecturer, "COSC 301", "Data Structures")
	testutil.Enroll(t, e.crsRepo, ada, crs)
	testutil.Enroll(t, e.crsRepo, musa, crs)

	asg := testutil.CreateAssignment(t, e.crsRepo, crs, 1, time.Now().Add(time.Hour))
	testutil.Grade(t, e.labRepo, testutil.Submit(t, e.labRepo, asg, ada, "print(1)"), lecturer, 85, "")
	testutil.Grade(t, e.labRepo, testutil.Submit(t, e.labRepo, asg, musa, "print(2)"), lecturer, 90, "")

	tests := []httpTest{
		{
			name: "stats", path: "/v1/courses/" + crs.ID + "/stats", token: getToken(t, e, lecturer), wantCode: http.StatusOK,
			wantData: marchallObj(t, lab.CourseStats{
				TotalStudents:    2,
				TotalAssignments: 1,
				TotalSubmissions: 2,
				TotalGraded:      2,
				AverageScore:     87.5,
			}),
		},
	}
	runHTTPTests(t, e, tests)
}

func Test_courseApi_gradeSheet(t *testing.T) {
	e := setup(t)
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	ada := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	crs := testutil.CreateCourse(t, e.crsRepo, lecturer, "COSC 301", "Data Structures")
	testutil.Enroll(t, e.crsRepo, ada, crs)
	asg := testutil.CreateAssignment(t, e.crsRepo, crs, 1, time.Now().Add(time.Hour))
	testutil.Grade(t, e.labRepo, testutil.Submit(t, e.labRepo, asg, ada, "print(1)"), lecturer, 85, "Tidy")

	req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/grades.csv", getToken(t, e, lecturer))
	e.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cosc301-grades.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Student", records[0][0])
	assert.Equal(t, []string{"Ada Okafor", "ada@babcock.test", "21/0345", "1", asg.Title, "85", "Tidy"}, records[1][:7])
}
