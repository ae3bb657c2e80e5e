package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/ibca/academic/core"
	"github.com/ibca/academic/core/course"
	"github.com/ibca/academic/core/homework"
	"github.com/ibca/academic/core/site"
	"github.com/ibca/academic/core/student"
	"github.com/ibca/academic/core/upload"
	"github.com/ibca/academic/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        *user.Service
		StudentSvc     *student.Service
		CourseSvc      *course.Service
		HomeworkSvc    *homework.Service
		SiteSvc        *site.Service
		Files          core.FileStore
		Policies       upload.Policies
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc, deps.StudentSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	// submissions are capped by the upload policy; leave room for the other form fields
	s.app.Use(middleware.BodyLimit(bodyLimit(s.deps.Policies)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	optAuth := optionalAuthMiddleware(s.auth)

	api.GET("/health", health)
	registerUserAPI(api, jwt, s.auth, s.deps)
	registerStudentAPI(api, jwt, s.auth, s.deps)
	registerCourseAPI(api, jwt, optAuth, s.deps)
	registerHomeworkAPI(api, jwt, optAuth, s.auth, s.deps)
	registerSiteAPI(api, jwt, optAuth, s.deps)
	registerFileAPI(api, s.deps)
}

// Start listens until the server is shut down. Listener errors are sent on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func bodyLimit(p upload.Policies) string {
	max := p.Homework.MaxBytes
	for _, n := range []int64{p.PDF.MaxBytes, p.Image.MaxBytes} {
		if n > max {
			max = n
		}
	}
	if max <= 0 {
		max = upload.DefaultPDFPolicy.MaxBytes
	}
	// BodyLimit only understands K/M/G suffixes; round up to the next MiB with 1 MiB of slack.
	return strconv.FormatInt(max>>20+2, 10) + "M"
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Academic API")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
