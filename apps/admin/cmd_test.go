package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	appfs "github.com/BISHOP-X/BABCOCK-VPL/fs"
	emailsvc "github.com/BISHOP-X/BABCOCK-VPL/services/email"
	logsvc "github.com/BISHOP-X/BABCOCK-VPL/services/logger"
	dummydb "github.com/BISHOP-X/BABCOCK-VPL/storage/database/dummy"
	testutil "github.com/BISHOP-X/BABCOCK-VPL/tests"
)

const pwd = "Lab#Work2025"

func TestMain(m *testing.M) {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &core.Config{})
	core.ParseEmailTemplates(appfs.FS, logger, false)

	os.Exit(m.Run())
}

type fixture struct {
	cli     *commandLine
	out     *bytes.Buffer
	usrRepo user.Repository
	crsRepo course.Repository
	labRepo lab.Repository
	outbox  *emailsvc.Outbox
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := &core.Config{AppName: "Babcock VPL", DefaultFromEmail: "noreply@babcock.test"}
	f := &fixture{
		out:     new(bytes.Buffer),
		usrRepo: dummydb.NewUserRepository(db),
		crsRepo: dummydb.NewCourseRepository(db),
		labRepo: dummydb.NewLabRepository(db),
		outbox:  emailsvc.NewOutbox(conf),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	usrSvc := user.NewService(f.usrRepo)
	f.cli = &commandLine{
		validate:   validate,
		translator: translator,
		usrSvc:     usrSvc,
		crsSvc:     course.NewService(f.crsRepo, usrSvc),
		labSvc: lab.NewService(lab.Deps{
			Repo:    f.labRepo,
			Courses: f.crsRepo,
			Users:   f.usrRepo,
			Mailer:  f.outbox,
		}),
		mailer: f.outbox,
		out:    f.out,
	}
	return f
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (f *fixture) runCLITests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := f.cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, f.cli.explain(err), tt.wantErrStr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)
	f.runCLITests(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, f.out.String(), "exportgrades -course ID")
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	err := f.cli.run([]string{"admin", "migrate", "up"})
	assert.Equal(t, errNoDatabase, err)

	db, err := sql.Open("postgres", "postgres://vpl@localhost/vpl?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	f.cli.db = db

	var ran []string
	orig := gooseRunFunc
	gooseRunFunc = func(ctx context.Context, db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, strings.TrimSpace(command+" "+strings.Join(args, " ")))
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	f.runCLITests(t, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "status", args: []string{"migrate", "status"}},
	})
	assert.Equal(t, []string{"up", "up-to 2", "status"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.usrRepo, "Taken", "taken@babcock.test", "21/0001")

	f.runCLITests(t, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "role missing", args: []string{"adduser", "-email", "ada@babcock.test", "-name", "Ada Okafor"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "ada@babcock.test", "-name", "Ada Okafor", "-role", "student"}, wantErr: errHelp},
		{
			name: "weak password", args: []string{"adduser", "-email", "ada@babcock.test", "-name", "Ada Okafor", "-role", "student"},
			pwd: "password", wantErrStr: "password:",
		},
		{
			name: "unknown role", args: []string{"adduser", "-email", "ada@babcock.test", "-name", "Ada Okafor", "-role", "admin"},
			pwd: pwd, wantErrStr: "role:",
		},
		{
			name: "email taken", args: []string{"adduser", "-email", "taken@babcock.test", "-name", "Ada Okafor", "-role", "student"},
			pwd: pwd, wantErrStr: "email: " + user.ErrEmailExists.Error(),
		},
		{
			name: "student", args: []string{"adduser", "-email", "Ada@Babcock.test", "-name", "Ada Okafor", "-role", "student", "-matric", "21/0345"},
			pwd: pwd,
		},
		{
			name: "lecturer", args: []string{"adduser", "-email", "bello@babcock.test", "-name", "Dr. Bello", "-role", "lecturer", "-staff", "BU-0042"},
			pwd: pwd,
		},
	})

	usr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{Email: "ada@babcock.test"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Equal(t, "21/0345", usr.MatricNumber)
	assert.NoError(t, usr.CheckPassword(pwd))
	assert.Contains(t, f.out.String(), "created lecturer bello@babcock.test")
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateStudent(t, f.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")

	f.runCLITests(t, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "ada@babcock.test"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "who@babcock.test"}, pwd: pwd, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-email", "ada@babcock.test"}, pwd: "12345678", wantErrStr: "password:"},
		{name: "reset", args: []string{"resetpassword", "-email", "ADA@babcock.test"}, pwd: "New#Pass2026"},
	})

	refreshed, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, bytes.Equal(usr.PasswordHash, refreshed.PasswordHash))
	assert.NoError(t, refreshed.CheckPassword("New#Pass2026"))
}

func Test_commandLine_exportGrades(t *testing.T) {
	f := setup(t)
	lecturer := testutil.CreateLecturer(t, f.usrRepo, "Dr. Adeyemi", "adeyemi@babcock.test")
	ada := testutil.CreateStudent(t, f.usrRepo, "Ada Okafor", "ada@babcock.test", "21/0345")
	musa := testutil.CreateStudent(t, f.usrRepo, "Musa Bello", "musa@babcock.test", "21/0346")
	crs := testutil.CreateCourse(t, f.crsRepo, lecturer, "COSC 301", "Data Structures")
	asg := testutil.CreateAssignment(t, f.crsRepo, crs, 1, time.Now().Add(time.Hour))
	testutil.Grade(t, f.labRepo, testutil.Submit(t, f.labRepo, asg, ada, "print(1)"), lecturer, 90, "Neat")
	testutil.Submit(t, f.labRepo, asg, musa, "print(2)")

	outFile := filepath.Join(t.TempDir(), "grades.csv")
	f.runCLITests(t, []cliTest{
		{name: "no args", args: []string{"exportgrades"}, wantErr: errHelp},
		{name: "unknown course", args: []string{"exportgrades", "-course", "nope"}, wantErr: course.ErrCourseNotFound},
		{name: "bad address", args: []string{"exportgrades", "-course", crs.ID, "-email", "not-an-address"}, wantErrStr: "invalid email address"},
		{name: "to file and mail", args: []string{"exportgrades", "-course", crs.ID, "-out", outFile, "-email", "adeyemi@babcock.test"}},
	})

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Student,Email,Matric Number,Week"))
	assert.Contains(t, lines[1], "Ada Okafor")
	assert.Contains(t, lines[1], "90")
	assert.Contains(t, lines[2], "Musa Bello")

	sent := f.outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "adeyemi@babcock.test", sent[0].To[0].Address)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "cosc301-grades.csv", sent[0].Attachments[0].Filename)
	assert.Contains(t, sent[0].TextContent, "Hello Dr. Adeyemi")
	assert.Contains(t, sent[0].TextContent, "2 submission(s)")
}

func Test_commandLine_explain(t *testing.T) {
	f := setup(t)
	err := core.NewValidationError(nil, core.FieldError{Field: "email", Error: "taken"})
	assert.Equal(t, "email: taken", f.cli.explain(err))
	assert.Equal(t, "boom", f.cli.explain(fmt.Errorf("boom")))
}
