// Package sqlxrepos implements the repositories on PostgreSQL through sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
)

// pq error codes
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
	codeValueTooLong        = "22001"
)

// foreign key constraint -> referenced resource
var fkResources = map[string]string{
	"course_lecturer_id_fkey":       "lecturer",
	"enrollment_student_id_fkey":    "student",
	"enrollment_course_id_fkey":     "course",
	"assignment_course_id_fkey":     "course",
	"submission_assignment_id_fkey": "assignment",
	"submission_student_id_fkey":    "student",
	"grade_submission_id_fkey":      "submission",
	"grade_graded_by_fkey":          "grader",
}

func NewDB(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

// dbError maps driver errors into core errors. notFound is returned for missing rows and
// malformed ids (an id that cannot be a UUID cannot exist either).
func dbError(err error, op string, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return core.NewConflictError(strings.TrimPrefix(pqErr.Message, "duplicate key value violates "))
		case codeForeignKeyViolation:
			if res, ok := fkResources[pqErr.Constraint]; ok {
				return core.NewNotFoundError(res)
			}
			return core.NewNotFoundError("referenced record")
		case codeCheckViolation, codeValueTooLong:
			return core.NewValidationError(errors.New(pqErr.Message))
		case codeInvalidText:
			if notFound != nil {
				return notFound
			}
			return core.NewValidationError(errors.New(pqErr.Message))
		}
	}
	return core.NewPersistenceError(err, op)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation && pqErr.Constraint == constraint
}

// namedGet runs a named query returning a single row into dest.
func namedGet(ctx context.Context, db *sqlx.DB, dest interface{}, query string, arg interface{}) error {
	stmt, err := db.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	return stmt.GetContext(ctx, dest, arg)
}

// where accumulates AND-ed conditions with `?` bindvars, rebound for postgres on build.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds `col IN (?)` expanded by sqlx.In.
func (w *where) in(col string, vals []string) error {
	q, args, err := sqlx.In(col+" IN (?)", vals)
	if err != nil {
		return err
	}
	w.add(q, args...)
	return nil
}

func (w *where) build(db *sqlx.DB, base, suffix string) (string, []interface{}) {
	q := base
	if len(w.conds) > 0 {
		q += " WHERE " + strings.Join(w.conds, " AND ")
	}
	if suffix != "" {
		q += " " + suffix
	}
	return db.Rebind(q), w.args
}
