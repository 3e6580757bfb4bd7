package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
	"github.com/BISHOP-X/BABCOCK-VPL/storage/database/dummy"
	"github.com/BISHOP-X/BABCOCK-VPL/tests"
)

func setup(t *testing.T) (course.Service, course.Repository, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	return course.NewService(crsRepo, user.NewService(usrRepo)), crsRepo, usrRepo
}

func Test_service_CreateCourse(t *testing.T) {
	svc, _, usrRepo := setup(t)
	ctx := context.Background()
	lecturer := testutil.CreateLecturer(t, usrRepo, "Dr. Adebayo", "adebayo@babcock.test")
	student := testutil.CreateStudent(t, usrRepo, "Chioma Obi", "chioma@babcock.test", "21/0345")

	nc := course.NewCourse{Title: "Data Structures", Code: "cosc 301", Language: course.LangPython}
	crs, err := svc.CreateCourse(ctx, lecturer, nc)
	require.NoError(t, err)
	assert.NotEmpty(t, crs.ID)
	assert.Equal(t, "COSC 301", crs.Code)
	assert.Equal(t, lecturer.ID, crs.LecturerID)

	_, err = svc.CreateCourse(ctx, student, nc)
	assert.True(t, core.IsValidation(err))

	got, err := svc.GetCourse(ctx, crs.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Lecturer)
	assert.Equal(t, "Dr. Adebayo", got.Lecturer.FullName)

	_, err = svc.GetCourse(ctx, "nope")
	assert.True(t, core.IsNotFound(err))

	mine, err := svc.CoursesByLecturer(ctx, lecturer.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	found, err := svc.ListCourses(ctx, &course.CourseFilter{Search: " structures "})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func Test_service_Enroll(t *testing.T) {
	svc, crsRepo, usrRepo := setup(t)
	ctx := context.Background()
	lecturer := testutil.CreateLecturer(t, usrRepo, "Dr. Adebayo", "adebayo@babcock.test")
	student := testutil.CreateStudent(t, usrRepo, "Chioma Obi", "chioma@babcock.test", "21/0345")
	crs := testutil.CreateCourse(t, crsRepo, lecturer, "COSC 301", "Data Structures")

	enr, err := svc.Enroll(ctx, student.ID, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, course.EnrollmentActive, enr.Status)

	_, err = svc.Enroll(ctx, student.ID, crs.ID)
	assert.True(t, core.IsConflict(err), err)

	_, err = svc.Enroll(ctx, lecturer.ID, crs.ID)
	assert.True(t, core.IsValidation(err), err)
	_, err = svc.Enroll(ctx, student.ID, "nope")
	assert.True(t, core.IsNotFound(err), err)

	enrs, err := svc.EnrollmentsForStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, enrs, 1)
	assert.Equal(t, crs.Code, enrs[0].Course.Code)

	students, err := svc.StudentsForCourse(ctx, crs.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, student.ID, students[0].ID)

	// archive then re-enroll
	archived, err := svc.ArchiveEnrollment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, course.EnrollmentArchived, archived.Status)

	enrs, err = svc.EnrollmentsForStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, enrs)

	_, err = svc.Enroll(ctx, student.ID, crs.ID)
	assert.NoError(t, err)
}

func Test_service_CreateAssignment(t *testing.T) {
	svc, crsRepo, usrRepo := setup(t)
	ctx := context.Background()
	lecturer := testutil.CreateLecturer(t, usrRepo, "Dr. Adebayo", "adebayo@babcock.test")
	intruder := testutil.CreateLecturer(t, usrRepo, "Dr. Okafor", "okafor@babcock.test")
	crs := testutil.CreateCourse(t, crsRepo, lecturer, "COSC 301", "Data Structures")
	due := time.Now().Add(7 * 24 * time.Hour)

	na := func(week int) course.NewAssignment {
		return course.NewAssignment{
			Title:      "Week assignment",
			WeekNumber: week,
			DueDate:    due,
			Tasks:      []course.Task{{Description: "one"}, {Description: "two", Hint: "think"}},
		}
	}

	a3, err := svc.CreateAssignment(ctx, lecturer, crs.ID, na(3))
	require.NoError(t, err)
	require.Len(t, a3.Tasks, 2)
	assert.NotEmpty(t, a3.Tasks[0].ID)
	assert.NotEqual(t, a3.Tasks[0].ID, a3.Tasks[1].ID)
	assert.Equal(t, time.UTC, a3.DueDate.Location())

	a1, err := svc.CreateAssignment(ctx, lecturer, crs.ID, na(1))
	require.NoError(t, err)

	_, err = svc.CreateAssignment(ctx, intruder, crs.ID, na(2))
	assert.True(t, core.IsValidation(err), err)

	got, err := svc.GetAssignment(ctx, a3.ID)
	require.NoError(t, err)
	assert.Equal(t, a3.Title, got.Title)

	asgs, err := svc.AssignmentsForCourse(ctx, crs.ID)
	require.NoError(t, err)
	require.Len(t, asgs, 2)
	assert.Equal(t, a1.ID, asgs[0].ID)
	assert.Equal(t, a3.ID, asgs[1].ID)
}

func TestNewAssignment_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	due := time.Now()

	tests := []struct {
		name    string
		na      course.NewAssignment
		wantErr bool
	}{
		{name: "valid", na: course.NewAssignment{Title: "Loops", WeekNumber: 1, DueDate: due}},
		{name: "week zero", na: course.NewAssignment{Title: "Loops", WeekNumber: 0, DueDate: due}, wantErr: true},
		{name: "negative week", na: course.NewAssignment{Title: "Loops", WeekNumber: -2, DueDate: due}, wantErr: true},
		{name: "no due date", na: course.NewAssignment{Title: "Loops", WeekNumber: 1}, wantErr: true},
		{name: "blank title", na: course.NewAssignment{Title: "   ", WeekNumber: 1, DueDate: due}, wantErr: true},
		{
			name:    "blank task",
			na:      course.NewAssignment{Title: "Loops", WeekNumber: 1, DueDate: due, Tasks: []course.Task{{Description: " "}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.na.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCourse_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	tests := []struct {
		name    string
		nc      course.NewCourse
		wantErr bool
	}{
		{name: "valid", nc: course.NewCourse{Title: "Data Structures", Code: "COSC 301", Language: "Python"}},
		{name: "no space code", nc: course.NewCourse{Title: "Data Structures", Code: "SENG402", Language: "java"}},
		{name: "bad code", nc: course.NewCourse{Title: "Data Structures", Code: "301", Language: "cpp"}, wantErr: true},
		{name: "bad language", nc: course.NewCourse{Title: "Data Structures", Code: "COSC 301", Language: "cobol"}, wantErr: true},
		{name: "no title", nc: course.NewCourse{Code: "COSC 301", Language: "cpp"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nc.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
