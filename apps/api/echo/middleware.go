package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

// context keys of the objects loaded by the middlewares below
const (
	courseContextKey     = "course"
	assignmentContextKey = "assignment"
)

// roleMiddleware only lets users holding one of roles through.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func studentMiddleware() echo.MiddlewareFunc  { return roleMiddleware(user.RoleStudent) }
func lecturerMiddleware() echo.MiddlewareFunc { return roleMiddleware(user.RoleLecturer) }

// courseMiddleware loads the course named by the `:id` param.
func courseMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			crs, err := svc.GetCourse(requestContext(ctx), ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting course")
			}
			ctx.Set(courseContextKey, crs)
			return next(ctx)
		}
	}
}

// assignmentMiddleware loads the assignment named by the `:id` param along with its course.
func assignmentMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			asg, err := svc.GetAssignment(requestContext(ctx), ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting assignment")
			}
			crs, err := svc.GetCourse(requestContext(ctx), asg.CourseID)
			if err != nil {
				return errors.Wrap(err, "getting assignment course")
			}
			ctx.Set(assignmentContextKey, asg)
			ctx.Set(courseContextKey, crs)
			return next(ctx)
		}
	}
}

// ownerMiddleware only lets the lecturer owning the loaded course through.
func ownerMiddleware(users user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			crs, err := contextCourse(ctx)
			if err != nil {
				return err
			}
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return err
			}
			if !course.IsOwner(crs.Course, usr) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// enrolledMiddleware only lets students actively enrolled in the loaded course through.
func enrolledMiddleware(users user.Service, courses course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			crs, err := contextCourse(ctx)
			if err != nil {
				return err
			}
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return err
			}
			enrolled, err := isEnrolled(ctx, courses, usr.ID, crs.ID)
			if err != nil {
				return err
			}
			if !enrolled {
				return errNotEnrolled
			}
			return next(ctx)
		}
	}
}

func isEnrolled(ctx echo.Context, courses course.Service, studentID, courseID string) (bool, error) {
	enrs, err := courses.EnrollmentsForStudent(requestContext(ctx), studentID)
	if err != nil {
		return false, errors.Wrap(err, "listing enrollments")
	}
	for _, enr := range enrs {
		if enr.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

func contextCourse(ctx echo.Context) (course.CourseWithLecturer, error) {
	crs, ok := ctx.Get(courseContextKey).(course.CourseWithLecturer)
	if !ok {
		return course.CourseWithLecturer{}, errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}
	return crs, nil
}

func contextAssignment(ctx echo.Context) (course.Assignment, error) {
	asg, ok := ctx.Get(assignmentContextKey).(course.Assignment)
	if !ok {
		return course.Assignment{}, errors.Wrap(errObjNotFoundInCtx, "retrieving assignment from context")
	}
	return asg, nil
}
