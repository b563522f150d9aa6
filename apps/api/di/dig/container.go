package dig_container

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/cadence/academy/apps/api/echo"
	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/analytics"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/certificate"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/notify"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	emailsvc "github.com/cadence/academy/services/email"
	logsvc "github.com/cadence/academy/services/logger"
	"github.com/cadence/academy/services/metrics"
	"github.com/cadence/academy/services/ratelimit"
	"github.com/cadence/academy/services/scheduler"
	"github.com/cadence/academy/services/storage"
	"github.com/cadence/academy/storage/database"
	boiledrepos "github.com/cadence/academy/storage/database/sqlboiler"
	sqlxrepos "github.com/cadence/academy/storage/database/sqlx"
)

// login & password reset attempts allowed per client and window
const (
	authRateLimit  = 5
	authRateWindow = 15 * time.Minute
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sql.DB, error) {
		if err := database.Bootstrap(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newMetrics(m *metrics.Prometheus) core.Metrics { return m }

func newLimiter(conf *core.Config, logger core.Logger) ratelimit.Limiter {
	limiter, err := ratelimit.New(conf, authRateLimit, authRateWindow)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up rate limiter: %v", err), err)
	}
	return limiter
}

func newUserService(db core.DB, repo user.Repository, notifier *notify.Notifier, conf *core.Config) *user.Service {
	return user.NewService(db, repo, notifier, conf)
}

func newProfileService(repo profile.Repository, usrSvc *user.Service) *profile.Service {
	return profile.NewService(repo, usrSvc)
}

func newEvaluator(conf *core.Config, catalog training.Catalog, store training.Store, m core.Metrics) *training.Evaluator {
	return training.NewEvaluator(catalog, store, conf.Training.PassPercentage, m)
}

func newCertificateService(
	conf *core.Config,
	logger core.Logger,
	repo certificate.Repository,
	trainingSvc *training.Service,
	files *storage.LocalStorage,
	generator *certificate.SVGGenerator,
	notifier *notify.Notifier,
) *certificate.Service {
	return certificate.NewService(repo, trainingSvc, files, generator, notifier, conf, logger)
}

type assessmentParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	DB          core.DB
	Repo        assessment.Repository
	Store       training.Store
	TrainingSvc *training.Service
	ProfileSvc  *profile.Service
	Notifier    *notify.Notifier
	CertSvc     *certificate.Service
	Metrics     core.Metrics
}

func newAssessmentService(p assessmentParams) *assessment.Service {
	return assessment.NewService(assessment.Deps{
		DB:        p.DB,
		Repo:      p.Repo,
		Store:     p.Store,
		Training:  p.TrainingSvc,
		Profiles:  p.ProfileSvc,
		Notifier:  p.Notifier,
		Certifier: p.CertSvc,
		Metrics:   p.Metrics,
		Logger:    p.Logger,
	}, p.Conf)
}

func newSessionService(
	conf *core.Config,
	logger core.Logger,
	repo livesession.Repository,
	usrSvc *user.Service,
	notifier *notify.Notifier,
) *livesession.Service {
	return livesession.NewService(repo, usrSvc, notifier, conf, logger)
}

type serverParams struct {
	dig.In

	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	Limiter        ratelimit.Limiter
	UserSvc        *user.Service
	ProfileSvc     *profile.Service
	TrainingSvc    *training.Service
	AssessmentSvc  *assessment.Service
	CertificateSvc *certificate.Service
	SessionSvc     *livesession.Service
	AnalyticsSvc   *analytics.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		Limiter:        p.Limiter,
		UserSvc:        p.UserSvc,
		ProfileSvc:     p.ProfileSvc,
		TrainingSvc:    p.TrainingSvc,
		AssessmentSvc:  p.AssessmentSvc,
		CertificateSvc: p.CertificateSvc,
		SessionSvc:     p.SessionSvc,
		AnalyticsSvc:   p.AnalyticsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(metrics.NewPrometheus))
	must(c.Provide(newMetrics))
	must(c.Provide(newLimiter))
	must(c.Provide(storage.NewLocalStorage))
	must(c.Provide(certificate.NewSVGGenerator))
	must(c.Provide(scheduler.New))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(notify.New))

	// repositories
	must(c.Provide(boiledrepos.NewUserRepository))
	must(c.Provide(boiledrepos.NewProfileRepository))
	must(c.Provide(boiledrepos.NewCertificateRepository))
	must(c.Provide(boiledrepos.NewSessionRepository))
	must(c.Provide(boiledrepos.NewAnalyticsRepository))
	must(c.Provide(sqlxrepos.NewCatalogRepository))
	must(c.Provide(sqlxrepos.NewProgressRepository))
	must(c.Provide(sqlxrepos.NewAssessmentRepository))
	must(c.Provide(func(repo assessment.Repository) training.QuestionIndex { return repo }))

	// services
	must(c.Provide(newUserService))
	must(c.Provide(newProfileService))
	must(c.Provide(newEvaluator))
	must(c.Provide(training.NewService))
	must(c.Provide(newCertificateService))
	must(c.Provide(newAssessmentService))
	must(c.Provide(newSessionService))
	must(c.Provide(analytics.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
