package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/BISHOP-X/BABCOCK-VPL/apps/api/echo"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	"github.com/BISHOP-X/BABCOCK-VPL/tests"
)

const pwd = "Lab#Work2025"

func Test_userApi_signup(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Taken", "taken@babcock.test", pwd, user.RoleStudent)

	newUser := func(email, role, matric, staffID, password string) []byte {
		return marchallObj(t, user.NewUser{
			Email:           email,
			FullName:        "Ada Okafor",
			Role:            role,
			MatricNumber:    matric,
			StaffID:         staffID,
			Password:        password,
			PasswordConfirm: password,
		})
	}

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/auth/signup", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/signup",
			body:     newUser("taken@babcock.test", user.RoleStudent, "21/0345", "", pwd),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "unknown role", method: http.MethodPost, path: "/v1/auth/signup",
			body:     newUser("ada@babcock.test", "admin", "", "", pwd),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "staff id on a student", method: http.MethodPost, path: "/v1/auth/signup",
			body:     newUser("ada@babcock.test", user.RoleStudent, "21/0345", "BU-0042", pwd),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/auth/signup",
			body:     newUser("ada@babcock.test", user.RoleStudent, "21/0345", "", "password"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "student", method: http.MethodPost, path: "/v1/auth/signup",
			body:     newUser("ada@babcock.test", user.RoleStudent, "21/0345", "", pwd),
			wantCode: http.StatusCreated,
		},
		{
			name: "lecturer", method: http.MethodPost, path: "/v1/auth/signup",
			body:     newUser("okafor@babcock.test", user.RoleLecturer, "", "BU-0042", pwd),
			wantCode: http.StatusCreated,
		},
	}
	runHTTPTests(t, e, tests)

	usr, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "ada@babcock.test"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Equal(t, "Computer Science", usr.Department)
	assert.NoError(t, usr.CheckPassword(pwd))
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	student := testutil.CreateUser(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", pwd, user.RoleStudent)
	lecturer := testutil.CreateUser(t, e.usrRepo, "Dr. Bello", "bello@babcock.test", pwd, user.RoleLecturer)

	login := func(email, password string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: password})
	}
	invalidCreds := marchallObj(t, httpErr{Error: "invalid credentials"})

	tests := []httpTest{
		{name: "no data", method: http.MethodPost, path: "/v1/auth/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login", body: login("who@babcock.test", pwd),
			wantCode: http.StatusBadRequest, wantData: invalidCreds,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: login(student.Email, "Wrong#Pass1"),
			wantCode: http.StatusBadRequest, wantData: invalidCreds,
		},
	}
	runHTTPTests(t, e, tests)

	homes := []struct {
		name     string
		usr      user.User
		email    string
		wantHome string
	}{
		{name: "student", usr: student, email: "ADA@babcock.test ", wantHome: user.HomeStudent},
		{name: "lecturer", usr: lecturer, email: lecturer.Email, wantHome: user.HomeLecturer},
	}
	for _, tt := range homes {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", login(tt.email, pwd))
			e.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res echoapi.LoginResponse
			unmarshal(t, rec, &res)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, tt.wantHome, res.Home)
			assert.Equal(t, tt.usr.ID, res.User.ID)

			// the token works
			req, rec = newAuthRequest(http.MethodGet, "/v1/me", res.Token)
			e.serve(req, rec)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")

	ghost := user.User{ID: "deleted", Email: "ghost@babcock.test", Role: user.RoleStudent}

	tests := []httpTest{
		{name: "auth required", path: "/v1/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "invalid token", path: "/v1/me", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "unknown user", path: "/v1/me", token: getToken(t, e, ghost), wantCode: http.StatusUnauthorized},
		{name: "me", path: "/v1/me", token: getToken(t, e, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
	}
	runHTTPTests(t, e, tests)
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")

	expired := e.app.Tokens().Claims(student, 1 /* long ago */)
	expiredToken, err := e.app.Tokens().Generate(expired)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/auth/token-refresh", token: expiredToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "refreshed", method: http.MethodPost, path: "/v1/auth/token-refresh", token: getToken(t, e, student), wantCode: http.StatusOK},
	}
	runHTTPTests(t, e, tests)
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)
	ada := testutil.CreateStudent(t, e.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	musa := testutil.CreateStudent(t, e.usrRepo, "Musa Bello", "musa@babcock.test", "21/0346")
	lecturer := testutil.CreateLecturer(t, e.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")

	lecturerToken := getToken(t, e, lecturer)

	tests := []httpTest{
		{name: "lecturer required", path: "/v1/users", token: getToken(t, e, ada), wantCode: http.StatusForbidden},
		{
			name: "students ordered by name", path: "/v1/users?role=student&ordering=full_name", token: lecturerToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, []user.User{ada, musa}),
		},
		{
			name: "search by matric", path: "/v1/users?search=21/0346", token: lecturerToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, []user.User{musa}),
		},
		{name: "no match", path: "/v1/users?search=nobody", token: lecturerToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	runHTTPTests(t, e, tests)
}
