package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type labApi struct {
	users    user.Service
	courses  course.Service
	svc      lab.Service
	validate *validator.Validate
}

func registerLabAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	users user.Service,
	courses course.Service,
	svc lab.Service,
	validate *validator.Validate,
) {
	api := labApi{
		users:    users,
		courses:  courses,
		svc:      svc,
		validate: validate,
	}
	student := studentMiddleware()
	enrolled := enrolledMiddleware(users, courses)

	ag := g.Group("/assignments/:id", jwt, assignmentMiddleware(courses))
	ag.GET("", api.retrieveAssignment)
	ag.POST("/run", api.run, student, enrolled)
	ag.POST("/submission", api.submit, student, enrolled)
	ag.GET("/submission", api.mySubmission, student)
	ag.GET("/submissions", api.submissions, lecturerMiddleware(), ownerMiddleware(users))

	sg := g.Group("/submissions/:id", jwt)
	sg.GET("", api.retrieveSubmission)
	sg.PUT("/grade", api.grade, lecturerMiddleware())

	g.GET("/students/me/grades", api.myGrades, jwt, student)
}

// Handlers

func (api *labApi) retrieveAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	asg, err := contextAssignment(ctx)
	if err != nil {
		return err
	}

	if usr.IsStudent() {
		aws, err := api.svc.AssignmentWithStatusFor(requestContext(ctx), asg.ID, usr.ID)
		if err != nil {
			return errors.Wrap(err, "getting assignment status")
		}
		return ctx.JSON(http.StatusOK, aws)
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *labApi) run(ctx echo.Context) error {
	var data lab.RunRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RunRequest")
	}
	asg, err := contextAssignment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.SimulateRun(asg, data))
}

func (api *labApi) submit(ctx echo.Context) error {
	var data lab.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	sub, err := api.svc.SubmitCode(requestContext(ctx), ctx.Param("id"), usr.ID, data.Code, data.Language, data.Output)
	if err != nil {
		return errors.Wrap(err, "submitting code")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *labApi) mySubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	sub, err := api.svc.SubmissionFor(requestContext(ctx), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *labApi) submissions(ctx echo.Context) error {
	subs, err := api.svc.SubmissionsForAssignment(requestContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []lab.SubmissionWithDetails{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

// retrieveSubmission shows a submission to its student and to the lecturer of its course only.
func (api *labApi) retrieveSubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(requestContext(ctx), ctx.Param("id"))
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting submission")
	}

	if usr.IsStudent() {
		if sub.StudentID != usr.ID {
			return errHttpNotFound
		}
		return ctx.JSON(http.StatusOK, sub)
	}
	if ok, err := api.ownsCourse(ctx, usr, sub.Assignment.CourseID); err != nil || !ok {
		if err != nil {
			return err
		}
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *labApi) grade(ctx echo.Context) error {
	var data lab.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(requestContext(ctx), ctx.Param("id"))
	if err != nil {
		if core.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting submission")
	}
	ok, err := api.ownsCourse(ctx, usr, sub.Assignment.CourseID)
	if err != nil {
		return err
	}
	if !ok {
		return errHttpForbidden
	}

	g, err := api.svc.GradeSubmission(requestContext(ctx), sub.ID, data.Score, data.Feedback, usr.ID)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *labApi) myGrades(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	grades, err := api.svc.GradesForStudent(requestContext(ctx), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing grades")
	}
	if grades == nil {
		grades = []lab.StudentGrade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *labApi) ownsCourse(ctx echo.Context, usr user.User, courseID string) (bool, error) {
	crs, err := api.courses.GetCourse(requestContext(ctx), courseID)
	if err != nil {
		return false, errors.Wrap(err, "getting course")
	}
	return course.IsOwner(crs.Course, usr), nil
}
