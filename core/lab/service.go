package lab

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSubmissionNotFound = core.NewNotFoundError("submission")
	ErrGradeNotFound      = core.NewNotFoundError("grade")
	ErrAlreadyGraded      = core.NewConflictError("submission has already been graded")
	ErrSubmissionLocked   = core.NewConflictError("submission has been graded and can no longer be changed")
	errInvalidScore       = errors.New("score must be a whole number between 0 and 100")
	errInvalidLanguage    = errors.New("language must be one of python, java or cpp")
)

const (
	minScore = 0
	maxScore = 100

	gradeEmailTemplate = "grade_recorded"
)

// Policy holds the grading rules that are a product decision rather than an invariant.
type Policy struct {
	// AllowRegrade lets a second grade replace the first one. Otherwise it is a ConflictError.
	AllowRegrade bool
	// LockGradedSubmissions rejects resubmissions once the submission is graded.
	LockGradedSubmissions bool
}

func PolicyFromConfig(conf *core.Config) Policy {
	return Policy{
		AllowRegrade:          conf.Grading.AllowRegrade,
		LockGradedSubmissions: conf.Grading.LockGradedSubmissions,
	}
}

// Deps are the collaborators of the lab Service. Repositories are required, the rest default to no-ops.
type Deps struct {
	Repo    Repository
	Courses course.Repository
	Users   user.Repository

	Cache  StatsCache
	Events EventPublisher
	Mailer core.EmailService
	Logger core.Logger

	Policy          Policy
	FrontendBaseURL string
}

type (
	Service interface {
		ListAssignmentsWithStatus(ctx context.Context, courseID, studentID string) ([]AssignmentWithStatus, error)
		SubmitCode(ctx context.Context, assignmentID, studentID, code, language, output string) (Submission, error)
		GradeSubmission(ctx context.Context, submissionID string, score float64, feedback, graderID string) (Grade, error)
		GetCourseStats(ctx context.Context, courseID string) (CourseStats, error)

		AssignmentWithStatusFor(ctx context.Context, assignmentID, studentID string) (AssignmentWithStatus, error)
		SubmissionFor(ctx context.Context, studentID, assignmentID string) (Submission, error)
		GetSubmission(ctx context.Context, id string) (SubmissionWithDetails, error)
		SubmissionsForAssignment(ctx context.Context, assignmentID string) ([]SubmissionWithDetails, error)
		GradesForStudent(ctx context.Context, studentID string) ([]StudentGrade, error)
		SimulateRun(asg course.Assignment, req RunRequest) RunResult
		GradeSheet(ctx context.Context, courseID string) ([]GradeSheetRow, error)
	}

	service struct {
		repo    Repository
		courses course.Repository
		users   user.Repository

		cache  StatsCache
		events EventPublisher
		mailer core.EmailService
		logger core.Logger

		policy          Policy
		frontendBaseURL string
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Repo, "deps.Repo"),
		vala.IsNotNil(deps.Courses, "deps.Courses"),
		vala.IsNotNil(deps.Users, "deps.Users"),
	).CheckAndPanic()

	svc := &service{
		repo:            deps.Repo,
		courses:         deps.Courses,
		users:           deps.Users,
		cache:           deps.Cache,
		events:          deps.Events,
		mailer:          deps.Mailer,
		logger:          deps.Logger,
		policy:          deps.Policy,
		frontendBaseURL: deps.FrontendBaseURL,
	}
	if svc.cache == nil {
		svc.cache = noopCache{}
	}
	if svc.events == nil {
		svc.events = noopEvents{}
	}
	if svc.mailer == nil {
		svc.mailer = noopMailer{}
	}
	if svc.logger == nil {
		svc.logger = noopLogger{}
	}
	return svc
}

// isCallerError reports whether err is the caller's fault rather than the store's.
func isCallerError(err error) bool {
	return core.IsValidation(err) || core.IsNotFound(err) || core.IsConflict(err)
}

// ValidateScore accepts whole numbers in [0, 100] only.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score != math.Trunc(score) || score < minScore || score > maxScore {
		return core.NewValidationError(errInvalidScore, core.FieldError{Field: "score", Error: errInvalidScore.Error()})
	}
	return nil
}

func (svc *service) ListAssignmentsWithStatus(ctx context.Context, courseID, studentID string) ([]AssignmentWithStatus, error) {
	asgs, err := svc.courses.QueryAssignments(ctx, course.AssignmentFilter{CourseIDs: []string{courseID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	res := make([]AssignmentWithStatus, 0, len(asgs))
	if len(asgs) == 0 {
		return res, nil
	}

	asgIDs := make([]string, 0, len(asgs))
	for _, asg := range asgs {
		asgIDs = append(asgIDs, asg.ID)
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentIDs: asgIDs, StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subsByAsg, grades, err := svc.indexSubmissions(ctx, subs)
	if err != nil {
		return nil, err
	}

	now := NowFunc()
	for _, asg := range asgs {
		var grade *Grade
		sub := subsByAsg[asg.ID]
		if sub != nil {
			grade = grades[sub.ID]
		}
		res = append(res, WithStatus(asg, sub, grade, now))
	}
	return res, nil
}

// indexSubmissions maps subs by assignment ID and loads their grades keyed by submission ID.
func (svc *service) indexSubmissions(ctx context.Context, subs []Submission) (map[string]*Submission, map[string]*Grade, error) {
	byAsg := make(map[string]*Submission, len(subs))
	grades := make(map[string]*Grade, len(subs))
	if len(subs) == 0 {
		return byAsg, grades, nil
	}

	ids := make([]string, 0, len(subs))
	for i := range subs {
		byAsg[subs[i].AssignmentID] = &subs[i]
		ids = append(ids, subs[i].ID)
	}
	grds, err := svc.repo.QueryGrades(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying grades")
	}
	for i := range grds {
		grades[grds[i].SubmissionID] = &grds[i]
	}
	return byAsg, grades, nil
}

func (svc *service) AssignmentWithStatusFor(ctx context.Context, assignmentID, studentID string) (AssignmentWithStatus, error) {
	asg, err := svc.courses.GetAssignment(ctx, assignmentID)
	if err != nil {
		return AssignmentWithStatus{}, err
	}
	sub, grade, err := svc.submissionAndGrade(ctx, assignmentID, studentID)
	if err != nil {
		return AssignmentWithStatus{}, err
	}
	return WithStatus(asg, sub, grade, NowFunc()), nil
}

// submissionAndGrade returns the submission of a student for an assignment and its grade, both may be nil.
func (svc *service) submissionAndGrade(ctx context.Context, assignmentID, studentID string) (*Submission, *Grade, error) {
	sub, err := svc.repo.GetSubmissionFor(ctx, assignmentID, studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "getting submission")
	}
	grade, err := svc.repo.GetGradeFor(ctx, sub.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return &sub, nil, nil
		}
		return nil, nil, errors.Wrap(err, "getting grade")
	}
	return &sub, &grade, nil
}

func (svc *service) SubmitCode(ctx context.Context, assignmentID, studentID, code, language, output string) (sub Submission, err error) {
	defer func() { submissionsTotal.WithLabelValues(languageLabel(language), outcome(err)).Inc() }()

	if language != "" && !course.IsLanguage(language) {
		return Submission{}, core.NewValidationError(errInvalidLanguage, core.FieldError{Field: "language", Error: errInvalidLanguage.Error()})
	}
	now := NowFunc().UTC()
	prev, grade, err := svc.submissionAndGrade(ctx, assignmentID, studentID)
	if err != nil {
		return Submission{}, err
	}
	if grade != nil && svc.policy.LockGradedSubmissions {
		return Submission{}, ErrSubmissionLocked
	}
	if prev != nil && prev.SubmittedAt.After(now) {
		now = prev.SubmittedAt
	}

	// a client hanging up must not leave the stored code and the cached stats out of step
	ctx = context.WithoutCancel(ctx)
	sub, err = svc.repo.UpsertSubmission(ctx, Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Code:         code,
		Language:     language,
		Output:       output,
		SubmittedAt:  now,
	})
	if err != nil {
		return Submission{}, errors.Wrap(err, "upserting submission")
	}

	svc.afterWrite(ctx, Event{
		Type:         EventSubmissionSubmitted,
		AssignmentID: sub.AssignmentID,
		SubmissionID: sub.ID,
		StudentID:    sub.StudentID,
		OccurredAt:   sub.SubmittedAt,
	})
	return sub, nil
}

func (svc *service) GradeSubmission(ctx context.Context, submissionID string, score float64, feedback, graderID string) (g Grade, err error) {
	defer func() { gradesTotal.WithLabelValues(outcome(err)).Inc() }()

	if err = ValidateScore(score); err != nil {
		return Grade{}, err
	}
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Grade{}, err
	}

	g = Grade{
		SubmissionID: sub.ID,
		Score:        int(score),
		Feedback:     core.CleanString(feedback),
		GradedBy:     graderID,
		GradedAt:     NowFunc().UTC(),
	}
	ctx = context.WithoutCancel(ctx)
	if svc.policy.AllowRegrade {
		g, err = svc.repo.UpsertGrade(ctx, g)
	} else {
		g, err = svc.repo.CreateGrade(ctx, g)
		if core.IsConflict(err) {
			err = ErrAlreadyGraded
		}
	}
	if err != nil {
		return Grade{}, errors.Wrap(err, "recording grade")
	}

	recorded := g.Score
	asg := svc.afterWrite(ctx, Event{
		Type:         EventGradeRecorded,
		AssignmentID: sub.AssignmentID,
		SubmissionID: sub.ID,
		StudentID:    sub.StudentID,
		Score:        &recorded,
		OccurredAt:   g.GradedAt,
	})
	if asg != nil {
		svc.notifyGrade(ctx, *asg, sub, g)
	}
	return g, nil
}

// afterWrite invalidates the course stats and publishes evt. Failures are logged, never returned:
// the write already happened. It returns the assignment of evt when it could be loaded.
func (svc *service) afterWrite(ctx context.Context, evt Event) *course.Assignment {
	asg, err := svc.courses.GetAssignment(ctx, evt.AssignmentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("lab.afterWrite(%s): loading assignment: %v", evt.Type, err), err)
		return nil
	}
	evt.CourseID = asg.CourseID

	if err = svc.cache.InvalidateStats(ctx, asg.CourseID); err != nil {
		svc.logger.Warn(fmt.Sprintf("lab.afterWrite(%s): invalidating stats: %v", evt.Type, err), err)
	}
	if err = svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn(fmt.Sprintf("lab.afterWrite(%s): publishing event: %v", evt.Type, err), err)
	}
	return &asg
}

func (svc *service) notifyGrade(ctx context.Context, asg course.Assignment, sub Submission, g Grade) {
	student, err := svc.users.GetUser(ctx, user.GetFilter{ID: sub.StudentID})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("lab.notifyGrade: loading student %s: %v", sub.StudentID, err), err)
		return
	}
	if student.Email == "" {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: student.FullName, Address: student.Email}},
		Subject:      fmt.Sprintf("Your submission for %q has been graded", asg.Title),
		TemplateName: gradeEmailTemplate,
		TemplateData: map[string]interface{}{
			"StudentName":     student.FullName,
			"AssignmentTitle": asg.Title,
			"WeekNumber":      asg.WeekNumber,
			"Score":           g.Score,
			"Feedback":        g.Feedback,
			"CourseID":        asg.CourseID,
		},
	}
	svc.mailer.SendMessages(msg.WithFrontendBaseURL(svc.frontendBaseURL))
}

func (svc *service) GetCourseStats(ctx context.Context, courseID string) (CourseStats, error) {
	stats, ok, err := svc.cache.GetStats(ctx, courseID)
	switch {
	case err != nil:
		statsCacheTotal.WithLabelValues("error").Inc()
		svc.logger.Warn(fmt.Sprintf("lab.GetCourseStats(%s): reading cache: %v", courseID, err), err)
	case ok:
		statsCacheTotal.WithLabelValues("hit").Inc()
		return stats, nil
	default:
		statsCacheTotal.WithLabelValues("miss").Inc()
	}

	if stats, err = svc.computeCourseStats(ctx, courseID); err != nil {
		return CourseStats{}, err
	}
	if err = svc.cache.SetStats(ctx, courseID, stats); err != nil {
		svc.logger.Warn(fmt.Sprintf("lab.GetCourseStats(%s): writing cache: %v", courseID, err), err)
	}
	return stats, nil
}

func (svc *service) computeCourseStats(ctx context.Context, courseID string) (CourseStats, error) {
	var stats CourseStats

	enrs, err := svc.courses.QueryEnrollments(ctx, course.EnrollmentFilter{CourseID: courseID, Status: course.EnrollmentActive})
	if err != nil {
		return CourseStats{}, errors.Wrap(err, "counting students")
	}
	stats.TotalStudents = len(enrs)

	asgs, err := svc.courses.QueryAssignments(ctx, course.AssignmentFilter{CourseIDs: []string{courseID}})
	if err != nil {
		return CourseStats{}, errors.Wrap(err, "counting assignments")
	}
	stats.TotalAssignments = len(asgs)
	if len(asgs) == 0 {
		return stats, nil
	}

	asgIDs := make([]string, 0, len(asgs))
	for _, asg := range asgs {
		asgIDs = append(asgIDs, asg.ID)
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentIDs: asgIDs})
	if err != nil {
		return CourseStats{}, errors.Wrap(err, "counting submissions")
	}
	stats.TotalSubmissions = len(subs)
	if len(subs) == 0 {
		return stats, nil
	}

	subIDs := make([]string, 0, len(subs))
	for _, sub := range subs {
		subIDs = append(subIDs, sub.ID)
	}
	grades, err := svc.repo.QueryGrades(ctx, subIDs)
	if err != nil {
		return CourseStats{}, errors.Wrap(err, "averaging grades")
	}
	stats.TotalGraded = len(grades)
	if len(grades) > 0 {
		var sum int
		for _, g := range grades {
			sum += g.Score
		}
		stats.AverageScore = core.RoundTo(float64(sum)/float64(len(grades)), 1)
	}
	return stats, nil
}

func (svc *service) SubmissionFor(ctx context.Context, studentID, assignmentID string) (Submission, error) {
	return svc.repo.GetSubmissionFor(ctx, assignmentID, studentID)
}

func (svc *service) GetSubmission(ctx context.Context, id string) (SubmissionWithDetails, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return SubmissionWithDetails{}, err
	}
	details, err := svc.withDetails(ctx, []Submission{sub})
	if err != nil {
		return SubmissionWithDetails{}, err
	}
	if len(details) == 0 {
		return SubmissionWithDetails{}, ErrSubmissionNotFound
	}
	return details[0], nil
}

func (svc *service) SubmissionsForAssignment(ctx context.Context, assignmentID string) ([]SubmissionWithDetails, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentIDs: []string{assignmentID}})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return svc.withDetails(ctx, subs)
}

// withDetails joins subs with their assignment, student and grade. Submissions whose
// assignment or student is gone are skipped.
func (svc *service) withDetails(ctx context.Context, subs []Submission) ([]SubmissionWithDetails, error) {
	res := make([]SubmissionWithDetails, 0, len(subs))
	if len(subs) == 0 {
		return res, nil
	}

	var asgIDs, studentIDs, subIDs []string
	for _, sub := range subs {
		asgIDs = append(asgIDs, sub.AssignmentID)
		studentIDs = append(studentIDs, sub.StudentID)
		subIDs = append(subIDs, sub.ID)
	}

	asgs, err := svc.courses.QueryAssignments(ctx, course.AssignmentFilter{IDs: asgIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgByID := make(map[string]course.Assignment, len(asgs))
	for _, asg := range asgs {
		asgByID[asg.ID] = asg
	}

	students, err := svc.users.QueryUsers(ctx, &user.QueryFilter{IDs: studentIDs}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	studentByID := make(map[string]user.User, len(students))
	for _, s := range students {
		studentByID[s.ID] = s
	}

	grades, err := svc.repo.QueryGrades(ctx, subIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	gradeBySub := make(map[string]*Grade, len(grades))
	for i := range grades {
		gradeBySub[grades[i].SubmissionID] = &grades[i]
	}

	for _, sub := range subs {
		asg, ok := asgByID[sub.AssignmentID]
		if !ok {
			continue
		}
		student, ok := studentByID[sub.StudentID]
		if !ok {
			continue
		}
		res = append(res, SubmissionWithDetails{
			Submission: sub,
			Assignment: asg,
			Student:    student,
			Grade:      gradeBySub[sub.ID],
		})
	}
	return res, nil
}

func (svc *service) GradesForStudent(ctx context.Context, studentID string) ([]StudentGrade, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	res := make([]StudentGrade, 0, len(subs))
	if len(subs) == 0 {
		return res, nil
	}

	subIDs := make([]string, 0, len(subs))
	asgIDs := make([]string, 0, len(subs))
	subByID := make(map[string]Submission, len(subs))
	for _, sub := range subs {
		subIDs = append(subIDs, sub.ID)
		asgIDs = append(asgIDs, sub.AssignmentID)
		subByID[sub.ID] = sub
	}

	grades, err := svc.repo.QueryGrades(ctx, subIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	if len(grades) == 0 {
		return res, nil
	}
	asgs, err := svc.courses.QueryAssignments(ctx, course.AssignmentFilter{IDs: asgIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgByID := make(map[string]course.Assignment, len(asgs))
	for _, asg := range asgs {
		asgByID[asg.ID] = asg
	}

	for _, g := range grades {
		sub := subByID[g.SubmissionID]
		asg, ok := asgByID[sub.AssignmentID]
		if !ok {
			continue
		}
		res = append(res, StudentGrade{Grade: g, Submission: sub, Assignment: asg})
	}
	return res, nil
}
