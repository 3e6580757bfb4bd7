package main

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"os"

	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
)

const gradeSheetTemplate = "grade_sheet"

// exportGrades writes the grade sheet of a course to out (stdout when empty) and optionally mails it.
func (cli *commandLine) exportGrades(ctx context.Context, courseID, out, emailTo string) error {
	crs, err := cli.crsSvc.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	rows, err := cli.labSvc.GradeSheet(ctx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "building grade sheet")
	}

	var sheet bytes.Buffer
	if err = lab.WriteGradeSheet(&sheet, rows); err != nil {
		return errors.Wrap(err, "writing grade sheet")
	}

	if out == "" {
		if _, err = cli.out.Write(sheet.Bytes()); err != nil {
			return err
		}
	} else {
		if err = os.WriteFile(out, sheet.Bytes(), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", out)
		}
		fmt.Fprintf(cli.out, "%d rows written to %s\n", len(rows), out)
	}

	if emailTo == "" {
		return nil
	}
	to, err := mail.ParseAddress(emailTo)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "email", Error: "invalid email address"})
	}
	var lecturerName string
	if crs.Lecturer != nil {
		lecturerName = crs.Lecturer.FullName
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{*to},
		Subject:      crs.Code + " grade sheet",
		TemplateName: gradeSheetTemplate,
		TemplateData: map[string]interface{}{
			"LecturerName": lecturerName,
			"CourseCode":   crs.Code,
			"CourseTitle":  crs.Title,
			"Rows":         len(rows),
		},
	}
	if err = msg.Attach(bytes.NewReader(sheet.Bytes()), lab.GradeSheetFilename(crs.Code), "text/csv"); err != nil {
		return errors.Wrap(err, "attaching grade sheet")
	}
	cli.mailer.SendMessages(msg)
	if w, ok := cli.mailer.(interface{ Wait() }); ok {
		w.Wait()
	}
	fmt.Fprintf(cli.out, "grade sheet mailed to %s\n", to.Address)
	return nil
}
