// Package tests drives the HTTP API end to end over the in-memory store.
package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/BISHOP-X/BABCOCK-VPL/apps/api/echo"
	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	emailsvc "github.com/BISHOP-X/BABCOCK-VPL/services/email"
	logsvc "github.com/BISHOP-X/BABCOCK-VPL/services/logger"
	"github.com/BISHOP-X/BABCOCK-VPL/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// env is a server wired to a fresh in-memory store.
type env struct {
	app     *echoapi.Server
	db      *dummydb.DB
	usrRepo user.Repository
	crsRepo course.Repository
	labRepo lab.Repository
	outbox  *emailsvc.Outbox
}

func testConfig() *core.Config {
	conf := &core.Config{
		AppName:          "Babcock VPL",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://vpl.test",
		DefaultFromEmail: "noreply@babcock.test",
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Grading.LockGradedSubmissions = true
	return conf
}

func setup(t *testing.T, configure ...func(*core.Config)) *env {
	t.Helper()

	conf := testConfig()
	for _, fn := range configure {
		fn(conf)
	}

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	e := &env{
		db:      db,
		usrRepo: dummydb.NewUserRepository(db),
		crsRepo: dummydb.NewCourseRepository(db),
		labRepo: dummydb.NewLabRepository(db),
		outbox:  emailsvc.NewOutbox(conf),
	}

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	usrSvc := user.NewService(e.usrRepo)
	e.app = echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      course.NewService(e.crsRepo, usrSvc),
		LabSvc: lab.NewService(lab.Deps{
			Repo:            e.labRepo,
			Courses:         e.crsRepo,
			Users:           e.usrRepo,
			Mailer:          e.outbox,
			Logger:          logger,
			Policy:          lab.PolicyFromConfig(conf),
			FrontendBaseURL: conf.FrontendBaseURL,
		}),
	})
	return e
}

func (e *env) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	e.app.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, e *env, usr user.User) string {
	token, err := e.app.Tokens().TokenFor(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, e *env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			e.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
