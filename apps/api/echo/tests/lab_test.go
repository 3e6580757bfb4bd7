package tests

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	"github.com/BISHOP-X/BABCOCK-VPL/tests"
)

type labFixture struct {
	*env
	lecturer, other, ada, musa user.User
	crs                        course.Course
	asg                        course.Assignment
}

// newLabFixture enrolls ada (not musa) in a course owned by lecturer with one open assignment.
func newLabFixture(t *testing.T, configure ...func(*core.Config)) *labFixture {
	f := &labFixture{env: setup(t, configure...)}
	f.lecturer = testutil.CreateLecturer(t, f.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	f.other = testutil.CreateLecturer(t, f.usrRepo, "Dr. Bello", "bello@babcock.test")
	f.ada = testutil.CreateStudent(t, f.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	f.musa = testutil.CreateStudent(t, f.usrRepo, "Musa Bello", "musa@babcock.test", "21/0346")
	f.crs = testutil.CreateCourse(t, f.crsRepo, f.lecturer, "COSC 301", "Data Structures")
	testutil.Enroll(t, f.crsRepo, f.ada, f.crs)
	f.asg = testutil.CreateAssignment(t, f.crsRepo, f.crs, 1, time.Now().Add(24*time.Hour), "Hello, Babcock!")
	return f
}

func (f *labFixture) submit(t *testing.T, student user.User, code string) (lab.Submission, int) {
	body := marchallObj(t, lab.NewSubmission{Code: code, Language: " Python ", Output: "Hello, Babcock!"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/assignments/"+f.asg.ID+"/submission", getToken(t, f.env, student), body)
	f.serve(req, rec)

	var sub lab.Submission
	if rec.Code == http.StatusOK {
		unmarshal(t, rec, &sub)
	}
	return sub, rec.Code
}

func (f *labFixture) grade(t *testing.T, grader user.User, subID string, body string) (lab.Grade, int) {
	req, rec := newAuthRequest(http.MethodPut, "/v1/submissions/"+subID+"/grade", getToken(t, f.env, grader), []byte(body))
	f.serve(req, rec)

	var g lab.Grade
	if rec.Code == http.StatusOK {
		unmarshal(t, rec, &g)
	}
	return g, rec.Code
}

func Test_labApi_submit(t *testing.T) {
	f := newLabFixture(t)

	_, code := f.submit(t, f.musa, "print('hi')")
	assert.Equal(t, http.StatusForbidden, code, "not enrolled")
	_, code = f.submit(t, f.lecturer, "print('hi')")
	assert.Equal(t, http.StatusForbidden, code, "lecturer")

	first, code := f.submit(t, f.ada, "print('v1')")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, course.LangPython, first.Language)

	second, code := f.submit(t, f.ada, "print('v2')")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.ID, second.ID, "resubmission keeps the submission")
	assert.Equal(t, "print('v2')", second.Code)
	assert.False(t, second.SubmittedAt.Before(first.SubmittedAt))

	req, rec := newAuthRequest(http.MethodGet, "/v1/assignments/"+f.asg.ID+"/submission", getToken(t, f.env, f.ada))
	f.serve(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, second)}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments/"+f.asg.ID, getToken(t, f.env, f.ada))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var aws lab.AssignmentWithStatus
	unmarshal(t, rec, &aws)
	assert.Equal(t, lab.StatusSubmitted, aws.Status)

	// graded submissions are locked
	_, code = f.grade(t, f.lecturer, second.ID, `{"score": 70}`)
	require.Equal(t, http.StatusOK, code)
	_, code = f.submit(t, f.ada, "print('v3')")
	assert.Equal(t, http.StatusConflict, code)
}

func Test_labApi_mySubmission(t *testing.T) {
	f := newLabFixture(t)

	tests := []httpTest{
		{name: "none yet", path: "/v1/assignments/" + f.asg.ID + "/submission", token: getToken(t, f.env, f.ada), wantCode: http.StatusNotFound},
		{name: "unknown assignment", path: "/v1/assignments/nope/submission", token: getToken(t, f.env, f.ada), wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, f.env, tests)
}

func Test_labApi_submit_language(t *testing.T) {
	f := newLabFixture(t)
	path := "/v1/assignments/" + f.asg.ID + "/submission"

	tests := []struct {
		name     string
		language string
		wantCode int
	}{
		{"unknown language", "brainfuck-extended-edition", http.StatusBadRequest},
		{"too long for the column", "python-3.12-with-extras", http.StatusBadRequest},
		{"no language", "", http.StatusOK},
		{"upper case java", " JAVA ", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := marchallObj(t, lab.NewSubmission{Code: "x", Language: tt.language})
			req, rec := newAuthRequest(http.MethodPost, path, getToken(t, f.env, f.ada), body)
			f.serve(req, rec)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusBadRequest {
				assert.Contains(t, rec.Body.String(), "language")
			}
		})
	}

	sub, err := f.labRepo.GetSubmissionFor(context.Background(), f.asg.ID, f.ada.ID)
	require.NoError(t, err)
	assert.Equal(t, course.LangJava, sub.Language)
}

func Test_labApi_run(t *testing.T) {
	f := newLabFixture(t)
	path := "/v1/assignments/" + f.asg.ID + "/run"
	body := marchallObj(t, lab.RunRequest{Code: "print('Hello, Babcock!')", Language: course.LangPython})

	req, rec := newAuthRequest(http.MethodPost, path, getToken(t, f.env, f.musa), body)
	f.serve(req, rec)
	assert.Equal(t, http.StatusForbidden, rec.Code, "not enrolled")

	req, rec = newAuthRequest(http.MethodPost, path, getToken(t, f.env, f.ada), body)
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	var res lab.RunResult
	unmarshal(t, rec, &res)
	assert.Equal(t, "Hello, Babcock!", res.Output)
	assert.Contains(t, res.Lines, "Hello, Babcock!")

	// the assignment shows the student the same output the run displays
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments/"+f.asg.ID, getToken(t, f.env, f.ada))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var aws lab.AssignmentWithStatus
	unmarshal(t, rec, &aws)
	require.NotNil(t, aws.ExpectedOutput)
	assert.Equal(t, res.Output, *aws.ExpectedOutput)

	// nothing was submitted
	_, err := f.labRepo.GetSubmissionFor(context.Background(), f.asg.ID, f.ada.ID)
	assert.True(t, core.IsNotFound(err))
}

func Test_labApi_grade(t *testing.T) {
	f := newLabFixture(t)
	sub, code := f.submit(t, f.ada, "print('Hello, Babcock!')")
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name     string
		grader   user.User
		subID    string
		body     string
		wantCode int
	}{
		{name: "student", grader: f.ada, subID: sub.ID, body: `{"score": 100}`, wantCode: http.StatusForbidden},
		{name: "other lecturer", grader: f.other, subID: sub.ID, body: `{"score": 80}`, wantCode: http.StatusForbidden},
		{name: "unknown submission", grader: f.lecturer, subID: "nope", body: `{"score": 80}`, wantCode: http.StatusNotFound},
		{name: "score above 100", grader: f.lecturer, subID: sub.ID, body: `{"score": 101}`, wantCode: http.StatusBadRequest},
		{name: "negative score", grader: f.lecturer, subID: sub.ID, body: `{"score": -1}`, wantCode: http.StatusBadRequest},
		{name: "fractional score", grader: f.lecturer, subID: sub.ID, body: `{"score": 85.5}`, wantCode: http.StatusBadRequest},
		{name: "graded", grader: f.lecturer, subID: sub.ID, body: `{"score": 85, "feedback": " Well done "}`, wantCode: http.StatusOK},
		{name: "regrade rejected", grader: f.lecturer, subID: sub.ID, body: `{"score": 95}`, wantCode: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, code := f.grade(t, tt.grader, tt.subID, tt.body)
			assert.Equal(t, tt.wantCode, code)
			if code == http.StatusOK {
				assert.Equal(t, 85, g.Score)
				assert.Equal(t, "Well done", g.Feedback)
				assert.Equal(t, f.lecturer.ID, g.GradedBy)
			}
		})
	}

	stored, err := f.labRepo.GetGradeFor(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, stored.Score)

	sent := f.outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.ada.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "85")

	req, rec := newAuthRequest(http.MethodGet, "/v1/students/me/grades", getToken(t, f.env, f.ada))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var grades []lab.StudentGrade
	unmarshal(t, rec, &grades)
	require.Len(t, grades, 1)
	assert.Equal(t, 85, grades[0].Score)
	assert.Equal(t, f.asg.ID, grades[0].Assignment.ID)
}

func Test_labApi_regrade(t *testing.T) {
	f := newLabFixture(t, func(conf *core.Config) { conf.Grading.AllowRegrade = true })
	sub, code := f.submit(t, f.ada, "print('Hello, Babcock!')")
	require.Equal(t, http.StatusOK, code)

	first, code := f.grade(t, f.lecturer, sub.ID, `{"score": 60}`)
	require.Equal(t, http.StatusOK, code)
	second, code := f.grade(t, f.lecturer, sub.ID, `{"score": 75, "feedback": "Fixed the edge case"}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 75, second.Score)
}

func Test_labApi_retrieveSubmission(t *testing.T) {
	f := newLabFixture(t)
	testutil.Enroll(t, f.crsRepo, f.musa, f.crs)
	sub, code := f.submit(t, f.ada, "print('Hello, Babcock!')")
	require.Equal(t, http.StatusOK, code)

	path := "/v1/submissions/" + sub.ID
	tests := []httpTest{
		{name: "auth required", path: path, wantCode: http.StatusUnauthorized},
		{name: "another student", path: path, token: getToken(t, f.env, f.musa), wantCode: http.StatusNotFound},
		{name: "another lecturer", path: path, token: getToken(t, f.env, f.other), wantCode: http.StatusNotFound},
		{name: "owner student", path: path, token: getToken(t, f.env, f.ada), wantCode: http.StatusOK},
		{name: "course lecturer", path: path, token: getToken(t, f.env, f.lecturer), wantCode: http.StatusOK},
	}
	runHTTPTests(t, f.env, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/assignments/"+f.asg.ID+"/submissions", getToken(t, f.env, f.lecturer))
	f.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []lab.SubmissionWithDetails
	unmarshal(t, rec, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, f.ada.ID, subs[0].Student.ID)
	assert.Nil(t, subs[0].Grade)
}

func Test_labApi_storeUnavailable(t *testing.T) {
	f := newLabFixture(t)
	token := getToken(t, f.env, f.lecturer)
	f.db.Fail(errors.New("connection refused"))

	req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+f.crs.ID+"/stats", token)
	f.serve(req, rec)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.db.Fail(nil)
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+f.crs.ID+"/stats", token)
	f.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
}
