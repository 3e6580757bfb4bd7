// Package echoapi exposes the lab over a JSON HTTP API.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BISHOP-X/BABCOCK-VPL/core"
	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
	"github.com/BISHOP-X/BABCOCK-VPL/core/lab"
	"github.com/BISHOP-X/BABCOCK-VPL/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc   user.Service
		CourseSvc course.Service
		LabSvc    lab.Service
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		tokens   *TokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts *Options) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Conf, "opts.Conf"),
		vala.IsNotNil(opts.Logger, "opts.Logger"),
		vala.IsNotNil(opts.Validate, "opts.Validate"),
		vala.IsNotNil(opts.Translator, "opts.Translator"),
		vala.IsNotNil(opts.UserSvc, "opts.UserSvc"),
		vala.IsNotNil(opts.CourseSvc, "opts.CourseSvc"),
		vala.IsNotNil(opts.LabSvc, "opts.LabSvc"),
	).CheckAndPanic()

	s := &Server{
		opts:     opts,
		app:      echo.New(),
		tokens:   NewTokenIssuer(opts.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(metricsMiddleware())
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.tokens.jwtConfig())

	registerUserAPI(v1, jwt, s.tokens, s.opts.UserSvc, s.opts.Validate)
	registerCourseAPI(v1, jwt, s.opts.UserSvc, s.opts.CourseSvc, s.opts.LabSvc, s.opts.Validate)
	registerLabAPI(v1, jwt, s.opts.UserSvc, s.opts.CourseSvc, s.opts.LabSvc, s.opts.Validate)
}

// Start blocks until the server stops. A failure to serve is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Conf.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the owner of the server to shut it down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Tokens returns the issuer signing the tokens this server accepts.
func (s *Server) Tokens() *TokenIssuer { return s.tokens }

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Babcock Virtual Programming Lab API!")
}
