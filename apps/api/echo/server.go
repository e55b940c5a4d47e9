package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrdawstar/LinguaLab-sub000/core"
	"github.com/mrdawstar/LinguaLab-sub000/core/attendance"
	"github.com/mrdawstar/LinguaLab-sub000/core/lessonpkg"
	"github.com/mrdawstar/LinguaLab-sub000/core/school"
	"github.com/mrdawstar/LinguaLab-sub000/core/usage"
)

type (
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DB             core.Pinger
		AttendanceSvc  *attendance.Service
		PackageSvc     *lessonpkg.Service
		SchoolSvc      *school.Service
		Reconciler     *usage.Reconciler
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start() error
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		address  string
		shutdown chan os.Signal
		deps     *Deps
		app      *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API server. A value is sent on shutdown when an unrecoverable error
// is caught while serving a request.
func NewServer(address string, shutdown chan os.Signal, deps *Deps) Server {
	s := &server{
		address:  address,
		shutdown: shutdown,
		deps:     deps,
		app:      echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !conf.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/healthz", s.health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1", middleware.JWTWithConfig(newJWTConfig(conf.Auth.JWTSecret)))
	staff := roleMiddleware(RoleAdmin, RoleTeacher)
	admin := roleMiddleware(RoleAdmin)

	registerAttendanceAPI(v1, staff, s.deps)
	registerUsageAPI(v1, staff, newAPIKeyMiddleware(func() string { return conf.Auth.ServiceKeyHash }), s.deps)
	registerPackageAPI(v1, staff, admin, s.deps)
	registerSchoolAPI(v1, admin, s.deps)
}

func (s *server) Start() error {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "starting server")
	}
	return nil
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *server) health(ctx echo.Context) error {
	if err := s.deps.DB.PingContext(ctx.Request().Context()); err != nil {
		s.deps.Logger.Error("health check failed", err)
		return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
