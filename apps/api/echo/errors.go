package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
	errNotEnrolled    = echo.NewHTTPError(http.StatusForbidden, "you are not enrolled in this course")
)

// errorStatus maps err to the status code of its response.
func errorStatus(err error) int {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized
		}
		if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
			return herr.Code
		}
		return origErr.Code
	case validator.ValidationErrors, *core.ValidationError:
		return http.StatusBadRequest
	case *core.NotFoundError:
		return http.StatusNotFound
	case *core.ConflictError:
		return http.StatusConflict
	case *core.PersistenceError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := errorStatus(err)
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok && origErr != middleware.ErrJWTMissing {
				origErr = herr
			}
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
		case *core.NotFoundError, *core.ConflictError:
			message = origErr.Error()
		case *core.PersistenceError:
			message = "the service is temporarily unavailable, please retry"
			logger.Warn(fmt.Sprintf("%s: %v", ctx.Path(), err), err, contextActor(ctx))
		default: // any other error is a server error
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg), contextActor(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// contextActor is the authenticated user as far as the token tells, for error reports.
func contextActor(ctx echo.Context) user.User {
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID = claims.Subject
		usr.Email = claims.Email
		usr.Role = claims.Role
	}
	return usr
}
