package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/analytics"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/certificate"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/services/ratelimit"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Limiter        ratelimit.Limiter
		DisableReqLogs bool

		UserSvc        *user.Service
		ProfileSvc     *profile.Service
		TrainingSvc    *training.Service
		AssessmentSvc  *assessment.Service
		CertificateSvc *certificate.Service
		SessionSvc     *livesession.Service
		AnalyticsSvc   *analytics.Service
	}

	Server struct {
		conf       *core.Config
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		limiter    ratelimit.Limiter
		app        *echo.Echo
		shutdown   chan os.Signal
		errors     chan error

		userSvc        *user.Service
		profileSvc     *profile.Service
		trainingSvc    *training.Service
		assessmentSvc  *assessment.Service
		certificateSvc *certificate.Service
		sessionSvc     *livesession.Service
		analyticsSvc   *analytics.Service
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		conf:           deps.Conf,
		logger:         deps.Logger,
		validate:       deps.Validate,
		translator:     deps.Translator,
		limiter:        deps.Limiter,
		app:            echo.New(),
		shutdown:       make(chan os.Signal, 1),
		errors:         make(chan error, 1),
		userSvc:        deps.UserSvc,
		profileSvc:     deps.ProfileSvc,
		trainingSvc:    deps.TrainingSvc,
		assessmentSvc:  deps.AssessmentSvc,
		certificateSvc: deps.CertificateSvc,
		sessionSvc:     deps.SessionSvc,
		analyticsSvc:   deps.AnalyticsSvc,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewMemoryLimiter(5, 15*time.Minute)
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps.DisableReqLogs)
	return s
}

func (s *Server) setup(disableReqLogs bool) {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !disableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)
	s.app.Static("/media", s.conf.Storage.Dir)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.conf))

	s.registerUserAPI(api, jwt)
	s.registerTrainingAPI(api, jwt)
	s.registerCertificateAPI(api, jwt)
	s.registerSessionAPI(api, jwt)
	s.registerAdminAPI(api, jwt)
}

// Start blocks until the server stops; a listen error is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
