package lab

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
)

const gradeSheetTimeLayout = "2006-01-02 15:04"

// GradeSheetRow is one submission of a course as exported for lecturers.
type GradeSheetRow struct {
	StudentName  string `csv:"Student"`
	Email        string `csv:"Email"`
	MatricNumber string `csv:"Matric Number"`
	WeekNumber   int    `csv:"Week"`
	Assignment   string `csv:"Assignment"`
	Score        string `csv:"Score"` // empty while ungraded
	Feedback     string `csv:"Feedback"`
	SubmittedAt  string `csv:"Submitted At"`
	GradedAt     string `csv:"Graded At"`
}

// GradeSheet lists every submission of the course ordered by week then student name.
func (svc *service) GradeSheet(ctx context.Context, courseID string) ([]GradeSheetRow, error) {
	asgs, err := svc.courses.QueryAssignments(ctx, course.AssignmentFilter{CourseIDs: []string{courseID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	rows := make([]GradeSheetRow, 0)
	if len(asgs) == 0 {
		return rows, nil
	}

	asgIDs := make([]string, 0, len(asgs))
	for _, asg := range asgs {
		asgIDs = append(asgIDs, asg.ID)
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentIDs: asgIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	details, err := svc.withDetails(ctx, subs)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Assignment.WeekNumber != details[j].Assignment.WeekNumber {
			return details[i].Assignment.WeekNumber < details[j].Assignment.WeekNumber
		}
		return details[i].Student.FullName < details[j].Student.FullName
	})

	for _, d := range details {
		row := GradeSheetRow{
			StudentName:  d.Student.FullName,
			Email:        d.Student.Email,
			MatricNumber: d.Student.MatricNumber,
			WeekNumber:   d.Assignment.WeekNumber,
			Assignment:   d.Assignment.Title,
			SubmittedAt:  formatSheetTime(d.SubmittedAt),
		}
		if d.Grade != nil {
			row.Score = strconv.Itoa(d.Grade.Score)
			row.Feedback = d.Grade.Feedback
			row.GradedAt = formatSheetTime(d.Grade.GradedAt)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatSheetTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(gradeSheetTimeLayout)
}

// WriteGradeSheet writes rows as CSV, header included. Free-text cells that a spreadsheet
// would evaluate as a formula are written with a leading quote.
func WriteGradeSheet(w io.Writer, rows []GradeSheetRow) error {
	out := make([]GradeSheetRow, len(rows))
	for i, row := range rows {
		row.StudentName = sheetText(row.StudentName)
		row.Email = sheetText(row.Email)
		row.MatricNumber = sheetText(row.MatricNumber)
		row.Assignment = sheetText(row.Assignment)
		row.Feedback = sheetText(row.Feedback)
		out[i] = row
	}
	return gocsv.Marshal(&out, w)
}

func sheetText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// GradeSheetFilename names the exported sheet of a course, "COSC 301" giving "cosc301-grades.csv".
func GradeSheetFilename(courseCode string) string {
	return strings.ToLower(strings.ReplaceAll(courseCode, " ", "")) + "-grades.csv"
}
