package boltdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

func submissionKey(assignmentID, studentID string) string {
	return assignmentID + ":" + studentID
}

type labRepository struct {
	store *Store
}

var _ lab.Repository = (*labRepository)(nil) // interface compliance check

func NewLabRepository(store *Store) lab.Repository {
	return &labRepository{store: store}
}

func (repo *labRepository) UpsertSubmission(_ context.Context, sub lab.Submission) (lab.Submission, error) {
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	err := repo.store.update("lab.UpsertSubmission", func(tx *bbolt.Tx) error {
		if !exists(tx, bucketAssignments, sub.AssignmentID) {
			return course.ErrAssignmentNotFound
		}
		if !exists(tx, bucketUsers, sub.StudentID) {
			return user.ErrNotFound
		}

		key := submissionKey(sub.AssignmentID, sub.StudentID)
		if id := index(tx, bucketSubmitKeys, key); id != "" {
			existing, err := get[lab.Submission](tx, bucketSubmissions, id, lab.ErrSubmissionNotFound)
			if err != nil {
				return err
			}
			sub.ID = existing.ID
			if existing.SubmittedAt.After(sub.SubmittedAt) {
				sub.SubmittedAt = existing.SubmittedAt
			}
		} else {
			sub.ID = uuid.NewString()
			if err := setIndex(tx, bucketSubmitKeys, key, sub.ID); err != nil {
				return err
			}
		}
		return put(tx, bucketSubmissions, sub.ID, sub)
	})
	if err != nil {
		return lab.Submission{}, err
	}
	return sub, nil
}

func (repo *labRepository) GetSubmission(_ context.Context, id string) (lab.Submission, error) {
	var sub lab.Submission
	err := repo.store.view("lab.GetSubmission", func(tx *bbolt.Tx) error {
		var err error
		sub, err = get[lab.Submission](tx, bucketSubmissions, id, lab.ErrSubmissionNotFound)
		return err
	})
	if err != nil {
		return lab.Submission{}, err
	}
	return sub, nil
}

func (repo *labRepository) GetSubmissionFor(_ context.Context, assignmentID, studentID string) (lab.Submission, error) {
	var sub lab.Submission
	err := repo.store.view("lab.GetSubmissionFor", func(tx *bbolt.Tx) error {
		id := index(tx, bucketSubmitKeys, submissionKey(assignmentID, studentID))
		if id == "" {
			return lab.ErrSubmissionNotFound
		}
		var err error
		sub, err = get[lab.Submission](tx, bucketSubmissions, id, lab.ErrSubmissionNotFound)
		return err
	})
	if err != nil {
		return lab.Submission{}, err
	}
	return sub, nil
}

func (repo *labRepository) QuerySubmissions(_ context.Context, filter lab.SubmissionFilter) ([]lab.Submission, error) {
	var subs []lab.Submission
	err := repo.store.view("lab.QuerySubmissions", func(tx *bbolt.Tx) error {
		var err error
		subs, err = list(tx, bucketSubmissions, func(s lab.Submission) bool {
			return (len(filter.IDs) == 0 || contains(filter.IDs, s.ID)) &&
				(len(filter.AssignmentIDs) == 0 || contains(filter.AssignmentIDs, s.AssignmentID)) &&
				(filter.StudentID == "" || s.StudentID == filter.StudentID)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

// checkGrade must run inside the writing transaction.
func checkGrade(tx *bbolt.Tx, g lab.Grade) error {
	if g.Score < 0 || g.Score > 100 {
		return core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score must be between 0 and 100"})
	}
	if !exists(tx, bucketSubmissions, g.SubmissionID) {
		return lab.ErrSubmissionNotFound
	}
	if !exists(tx, bucketUsers, g.GradedBy) {
		return user.ErrNotFound
	}
	return nil
}

func (repo *labRepository) CreateGrade(_ context.Context, g lab.Grade) (lab.Grade, error) {
	g.GradedAt = g.GradedAt.UTC()
	err := repo.store.update("lab.CreateGrade", func(tx *bbolt.Tx) error {
		if err := checkGrade(tx, g); err != nil {
			return err
		}
		if exists(tx, bucketGradeKeys, g.SubmissionID) {
			return lab.ErrAlreadyGraded
		}
		g.ID = uuid.NewString()
		if err := setIndex(tx, bucketGradeKeys, g.SubmissionID, g.ID); err != nil {
			return err
		}
		return put(tx, bucketGrades, g.ID, g)
	})
	if err != nil {
		return lab.Grade{}, err
	}
	return g, nil
}

func (repo *labRepository) UpsertGrade(_ context.Context, g lab.Grade) (lab.Grade, error) {
	g.GradedAt = g.GradedAt.UTC()
	err := repo.store.update("lab.UpsertGrade", func(tx *bbolt.Tx) error {
		if err := checkGrade(tx, g); err != nil {
			return err
		}
		if id := index(tx, bucketGradeKeys, g.SubmissionID); id != "" {
			g.ID = id
		} else {
			g.ID = uuid.NewString()
			if err := setIndex(tx, bucketGradeKeys, g.SubmissionID, g.ID); err != nil {
				return err
			}
		}
		return put(tx, bucketGrades, g.ID, g)
	})
	if err != nil {
		return lab.Grade{}, err
	}
	return g, nil
}

func (repo *labRepository) GetGradeFor(_ context.Context, submissionID string) (lab.Grade, error) {
	var g lab.Grade
	err := repo.store.view("lab.GetGradeFor", func(tx *bbolt.Tx) error {
		id := index(tx, bucketGradeKeys, submissionID)
		if id == "" {
			return lab.ErrGradeNotFound
		}
		var err error
		g, err = get[lab.Grade](tx, bucketGrades, id, lab.ErrGradeNotFound)
		return err
	})
	if err != nil {
		return lab.Grade{}, err
	}
	return g, nil
}

func (repo *labRepository) QueryGrades(_ context.Context, submissionIDs []string) ([]lab.Grade, error) {
	grades := make([]lab.Grade, 0, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return grades, nil
	}
	err := repo.store.view("lab.QueryGrades", func(tx *bbolt.Tx) error {
		seen := make(map[string]bool, len(submissionIDs))
		for _, subID := range submissionIDs {
			id := index(tx, bucketGradeKeys, subID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			g, err := get[lab.Grade](tx, bucketGrades, id, lab.ErrGradeNotFound)
			if err != nil {
				return err
			}
			grades = append(grades, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(grades, func(i, j int) bool { return grades[i].GradedAt.Before(grades[j].GradedAt) })
	return grades, nil
}
