package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type labRepository struct {
	db *DB
}

var _ lab.Repository = (*labRepository)(nil) // interface compliance check

func NewLabRepository(db *DB) lab.Repository {
	return &labRepository{db: db}
}

// submissionFor must be called with the lock held.
func (repo *labRepository) submissionFor(assignmentID, studentID string) *lab.Submission {
	for _, sub := range repo.db.submission {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return sub
		}
	}
	return nil
}

// gradeFor must be called with the lock held.
func (repo *labRepository) gradeFor(submissionID string) *lab.Grade {
	for _, g := range repo.db.grade {
		if g.SubmissionID == submissionID {
			return g
		}
	}
	return nil
}

func (repo *labRepository) UpsertSubmission(_ context.Context, sub lab.Submission) (lab.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("lab.UpsertSubmission"); err != nil {
		return lab.Submission{}, err
	}

	if _, ok := repo.db.assignment[sub.AssignmentID]; !ok {
		return lab.Submission{}, course.ErrAssignmentNotFound
	}
	if _, ok := repo.db.user[sub.StudentID]; !ok {
		return lab.Submission{}, user.ErrNotFound
	}

	if existing := repo.submissionFor(sub.AssignmentID, sub.StudentID); existing != nil {
		sub.ID = existing.ID
		if existing.SubmittedAt.After(sub.SubmittedAt) {
			sub.SubmittedAt = existing.SubmittedAt
		}
	} else {
		sub.ID = uuid.NewString()
	}
	repo.db.submission[sub.ID] = &sub
	return sub, nil
}

func (repo *labRepository) GetSubmission(_ context.Context, id string) (lab.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("lab.GetSubmission"); err != nil {
		return lab.Submission{}, err
	}

	if sub, ok := repo.db.submission[id]; ok {
		return *sub, nil
	}
	return lab.Submission{}, lab.ErrSubmissionNotFound
}

func (repo *labRepository) GetSubmissionFor(_ context.Context, assignmentID, studentID string) (lab.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("lab.GetSubmissionFor"); err != nil {
		return lab.Submission{}, err
	}

	if sub := repo.submissionFor(assignmentID, studentID); sub != nil {
		return *sub, nil
	}
	return lab.Submission{}, lab.ErrSubmissionNotFound
}

func (repo *labRepository) QuerySubmissions(_ context.Context, filter lab.SubmissionFilter) ([]lab.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("lab.QuerySubmissions"); err != nil {
		return nil, err
	}

	subs := make([]lab.Submission, 0)
	for _, sub := range repo.db.submission {
		if len(filter.IDs) > 0 && !contains(filter.IDs, sub.ID) {
			continue
		}
		if len(filter.AssignmentIDs) > 0 && !contains(filter.AssignmentIDs, sub.AssignmentID) {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

// checkGrade must be called with the lock held.
func (repo *labRepository) checkGrade(g lab.Grade) error {
	if _, ok := repo.db.submission[g.SubmissionID]; !ok {
		return lab.ErrSubmissionNotFound
	}
	if _, ok := repo.db.user[g.GradedBy]; !ok {
		return user.ErrNotFound
	}
	if g.Score < 0 || g.Score > 100 {
		return core.NewValidationError(nil, core.FieldError{Field: "score", Error: "score must be between 0 and 100"})
	}
	return nil
}

func (repo *labRepository) CreateGrade(_ context.Context, g lab.Grade) (lab.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("lab.CreateGrade"); err != nil {
		return lab.Grade{}, err
	}

	if err := repo.checkGrade(g); err != nil {
		return lab.Grade{}, err
	}
	if repo.gradeFor(g.SubmissionID) != nil {
		return lab.Grade{}, lab.ErrAlreadyGraded
	}
	g.ID = uuid.NewString()
	repo.db.grade[g.ID] = &g
	return g, nil
}

func (repo *labRepository) UpsertGrade(_ context.Context, g lab.Grade) (lab.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.check("lab.UpsertGrade"); err != nil {
		return lab.Grade{}, err
	}

	if err := repo.checkGrade(g); err != nil {
		return lab.Grade{}, err
	}
	if existing := repo.gradeFor(g.SubmissionID); existing != nil {
		g.ID = existing.ID
	} else {
		g.ID = uuid.NewString()
	}
	repo.db.grade[g.ID] = &g
	return g, nil
}

func (repo *labRepository) GetGradeFor(_ context.Context, submissionID string) (lab.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("lab.GetGradeFor"); err != nil {
		return lab.Grade{}, err
	}

	if g := repo.gradeFor(submissionID); g != nil {
		return *g, nil
	}
	return lab.Grade{}, lab.ErrGradeNotFound
}

func (repo *labRepository) QueryGrades(_ context.Context, submissionIDs []string) ([]lab.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.check("lab.QueryGrades"); err != nil {
		return nil, err
	}

	grades := make([]lab.Grade, 0)
	if len(submissionIDs) == 0 {
		return grades, nil
	}
	for _, g := range repo.db.grade {
		if contains(submissionIDs, g.SubmissionID) {
			grades = append(grades, *g)
		}
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].GradedAt.Before(grades[j].GradedAt) })
	return grades, nil
}
