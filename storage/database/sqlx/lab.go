package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
)

const (
	submissionColumns = `id, assignment_id, student_id, code, language, output, submitted_at`
	gradeColumns      = `id, submission_id, score, feedback, graded_by, graded_at`
)

type submissionRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	Code         string    `db:"code"`
	Language     string    `db:"language"`
	Output       string    `db:"output"`
	SubmittedAt  time.Time `db:"submitted_at"`
}

func (r submissionRow) toSubmission() lab.Submission {
	sub := lab.Submission(r)
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	return sub
}

type gradeRow struct {
	ID           string    `db:"id"`
	SubmissionID string    `db:"submission_id"`
	Score        int       `db:"score"`
	Feedback     string    `db:"feedback"`
	GradedBy     string    `db:"graded_by"`
	GradedAt     time.Time `db:"graded_at"`
}

func (r gradeRow) toGrade() lab.Grade {
	g := lab.Grade(r)
	g.GradedAt = g.GradedAt.UTC()
	return g
}

type labRepository struct {
	db *sqlx.DB
}

var _ lab.Repository = (*labRepository)(nil) // interface compliance check

func NewLabRepository(db *sqlx.DB) lab.Repository {
	return &labRepository{db: db}
}

// UpsertSubmission relies on submission_assignment_student_uniq: concurrent submits for the same
// pair serialize on the row and the later commit wins. submitted_at never moves backwards.
func (repo *labRepository) UpsertSubmission(ctx context.Context, sub lab.Submission) (lab.Submission, error) {
	sub.ID = uuid.NewString()
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	var row submissionRow
	err := namedGet(ctx, repo.db, &row, `
		INSERT INTO submission (`+submissionColumns+`)
		VALUES (:id, :assignment_id, :student_id, :code, :language, :output, :submitted_at)
		ON CONFLICT ON CONSTRAINT submission_assignment_student_uniq DO UPDATE SET
			code = EXCLUDED.code,
			language = EXCLUDED.language,
			output = EXCLUDED.output,
			submitted_at = GREATEST(submission.submitted_at, EXCLUDED.submitted_at)
		RETURNING `+submissionColumns,
		submissionRow(sub),
	)
	if err != nil {
		return lab.Submission{}, dbError(err, "lab.UpsertSubmission", nil)
	}
	return row.toSubmission(), nil
}

func (repo *labRepository) GetSubmission(ctx context.Context, id string) (lab.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submission WHERE id = $1`, id)
	if err != nil {
		return lab.Submission{}, dbError(err, "lab.GetSubmission", lab.ErrSubmissionNotFound)
	}
	return row.toSubmission(), nil
}

func (repo *labRepository) GetSubmissionFor(ctx context.Context, assignmentID, studentID string) (lab.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+submissionColumns+` FROM submission WHERE assignment_id = $1 AND student_id = $2`,
		assignmentID, studentID,
	)
	if err != nil {
		return lab.Submission{}, dbError(err, "lab.GetSubmissionFor", lab.ErrSubmissionNotFound)
	}
	return row.toSubmission(), nil
}

func (repo *labRepository) QuerySubmissions(ctx context.Context, filter lab.SubmissionFilter) ([]lab.Submission, error) {
	var w where
	if len(filter.IDs) > 0 {
		if err := w.in("id::text", filter.IDs); err != nil {
			return nil, dbError(err, "lab.QuerySubmissions", nil)
		}
	}
	if len(filter.AssignmentIDs) > 0 {
		if err := w.in("assignment_id::text", filter.AssignmentIDs); err != nil {
			return nil, dbError(err, "lab.QuerySubmissions", nil)
		}
	}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}

	q, args := w.build(repo.db, `SELECT `+submissionColumns+` FROM submission`, "ORDER BY submitted_at")
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, dbError(err, "lab.QuerySubmissions", nil)
	}
	subs := make([]lab.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

// CreateGrade never overwrites: the insert is a no-op when the submission already has a grade.
func (repo *labRepository) CreateGrade(ctx context.Context, g lab.Grade) (lab.Grade, error) {
	g.ID = uuid.NewString()
	g.GradedAt = g.GradedAt.UTC()
	var row gradeRow
	err := namedGet(ctx, repo.db, &row, `
		INSERT INTO grade (`+gradeColumns+`)
		VALUES (:id, :submission_id, :score, :feedback, :graded_by, :graded_at)
		ON CONFLICT (submission_id) DO NOTHING
		RETURNING `+gradeColumns,
		gradeRow(g),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return lab.Grade{}, lab.ErrAlreadyGraded
	}
	if err != nil {
		return lab.Grade{}, dbError(err, "lab.CreateGrade", nil)
	}
	return row.toGrade(), nil
}

func (repo *labRepository) UpsertGrade(ctx context.Context, g lab.Grade) (lab.Grade, error) {
	g.ID = uuid.NewString()
	g.GradedAt = g.GradedAt.UTC()
	var row gradeRow
	err := namedGet(ctx, repo.db, &row, `
		INSERT INTO grade (`+gradeColumns+`)
		VALUES (:id, :submission_id, :score, :feedback, :graded_by, :graded_at)
		ON CONFLICT (submission_id) DO UPDATE SET
			score = EXCLUDED.score,
			feedback = EXCLUDED.feedback,
			graded_by = EXCLUDED.graded_by,
			graded_at = EXCLUDED.graded_at
		RETURNING `+gradeColumns,
		gradeRow(g),
	)
	if err != nil {
		return lab.Grade{}, dbError(err, "lab.UpsertGrade", nil)
	}
	return row.toGrade(), nil
}

func (repo *labRepository) GetGradeFor(ctx context.Context, submissionID string) (lab.Grade, error) {
	var row gradeRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+gradeColumns+` FROM grade WHERE submission_id = $1`, submissionID)
	if err != nil {
		return lab.Grade{}, dbError(err, "lab.GetGradeFor", lab.ErrGradeNotFound)
	}
	return row.toGrade(), nil
}

func (repo *labRepository) QueryGrades(ctx context.Context, submissionIDs []string) ([]lab.Grade, error) {
	if len(submissionIDs) == 0 {
		return []lab.Grade{}, nil
	}
	var w where
	if err := w.in("submission_id::text", submissionIDs); err != nil {
		return nil, dbError(err, "lab.QueryGrades", nil)
	}

	q, args := w.build(repo.db, `SELECT `+gradeColumns+` FROM grade`, "ORDER BY graded_at")
	var rows []gradeRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, dbError(err, "lab.QueryGrades", nil)
	}
	grades := make([]lab.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.toGrade())
	}
	return grades, nil
}
