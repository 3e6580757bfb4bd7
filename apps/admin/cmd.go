package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB // migrate only
	validate   *validator.Validate
	translator ut.Translator
	usrSvc     user.Service
	crsSvc     course.Service
	labSvc     lab.Service
	mailer     core.EmailService
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -role student|lecturer [-matric N] [-staff ID] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, version...)")
	fmt.Fprintln(cli.out, "  exportgrades -course ID [-out FILE] [-email ADDRESS] - export a course grade sheet as CSV")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

// readPassword prompts for a password without echoing it.
func (cli *commandLine) readPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "adduser":
		cmd := cli.newFlagSet("adduser")
		email := cmd.String("email", "", "The user's email.")
		name := cmd.String("name", "", "The user's full name.")
		role := cmd.String("role", "", "student or lecturer.")
		matric := cmd.String("matric", "", "Matric number (students).")
		staffID := cmd.String("staff", "", "Staff ID (lecturers).")
		dept := cmd.String("department", "", "Department; defaults to Computer Science.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		if *email == "" || *name == "" || *role == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd)
		if err != nil {
			return err
		}
		_, err = cli.addUser(ctx, user.NewUser{
			Email:           *email,
			FullName:        *name,
			Role:            *role,
			MatricNumber:    *matric,
			StaffID:         *staffID,
			Department:      *dept,
			Password:        pwd,
			PasswordConfirm: pwd,
		})
		return err

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(cmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *email, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "exportgrades":
		cmd := cli.newFlagSet("exportgrades")
		courseID := cmd.String("course", "", "The course ID.")
		out := cmd.String("out", "", "Output file; stdout when empty.")
		emailTo := cmd.String("email", "", "Also mail the sheet to this address.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		if *courseID == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.exportGrades(ctx, *courseID, *out, *emailTo)

	default:
		cli.printUsage()
		return errHelp
	}
}

// explain turns validation errors into one line per field.
func (cli *commandLine) explain(err error) string {
	switch verr := pkgerrors.Cause(err).(type) {
	case validator.ValidationErrors:
		lines := make([]string, 0, len(verr))
		for _, fe := range verr {
			msg := fe.Error()
			if cli.translator != nil {
				msg = fe.Translate(cli.translator)
			}
			lines = append(lines, fe.Field()+": "+msg)
		}
		sort.Strings(lines)
		return strings.Join(lines, "\n")
	case *core.ValidationError:
		if len(verr.Fields) == 0 {
			return verr.Error()
		}
		lines := make([]string, 0, len(verr.Fields))
		for _, fe := range verr.Fields {
			lines = append(lines, fe.Field+": "+fe.Error)
		}
		return strings.Join(lines, "\n")
	}
	return err.Error()
}
