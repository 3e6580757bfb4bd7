package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type courseApi struct {
	users    user.Service
	svc      course.Service
	lab      lab.Service
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	users user.Service,
	svc course.Service,
	labSvc lab.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		users:    users,
		svc:      svc,
		lab:      labSvc,
		validate: validate,
	}
	lecturer := lecturerMiddleware()
	owner := ownerMiddleware(users)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, lecturer)

	// detail endpoints
	dg := cg.Group("/:id", courseMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.GET("/students", api.students, lecturer, owner)
	dg.GET("/stats", api.stats, lecturer, owner)
	dg.GET("/grades.csv", api.gradeSheet, lecturer, owner)
	dg.POST("/enrollments", api.enroll, studentMiddleware())
	dg.GET("/assignments", api.assignments)
	dg.POST("/assignments", api.createAssignment, lecturer, owner)

	g.GET("/students/me/enrollments", api.myEnrollments, jwt, studentMiddleware())
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.CourseFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()

	courses, err := api.svc.ListCourses(requestContext(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	crs, err := api.svc.CreateCourse(requestContext(ctx), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) students(ctx echo.Context) error {
	students, err := api.svc.StudentsForCourse(requestContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing course students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *courseApi) stats(ctx echo.Context) error {
	stats, err := api.lab.GetCourseStats(requestContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *courseApi) gradeSheet(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	rows, err := api.lab.GradeSheet(requestContext(ctx), crs.ID)
	if err != nil {
		return errors.Wrap(err, "building grade sheet")
	}

	filename := lab.GradeSheetFilename(crs.Code)
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return errors.Wrap(lab.WriteGradeSheet(res, rows), "writing grade sheet")
}

func (api *courseApi) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	enr, err := api.svc.Enroll(requestContext(ctx), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

// assignments shows students the status of each assignment, lecturers the assignments alone.
func (api *courseApi) assignments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	if usr.IsStudent() {
		asgs, err := api.lab.ListAssignmentsWithStatus(requestContext(ctx), ctx.Param("id"), usr.ID)
		if err != nil {
			return errors.Wrap(err, "listing assignments with status")
		}
		return ctx.JSON(http.StatusOK, asgs)
	}

	asgs, err := api.svc.AssignmentsForCourse(requestContext(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if asgs == nil {
		asgs = []course.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	asg, err := api.svc.CreateAssignment(requestContext(ctx), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *courseApi) myEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	enrs, err := api.svc.EnrollmentsForStudent(requestContext(ctx), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrs == nil {
		enrs = []course.EnrollmentWithCourse{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}
