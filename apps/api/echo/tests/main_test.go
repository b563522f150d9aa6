package tests

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/cadence/academy/apps/api/echo"
	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/analytics"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/certificate"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/notify"
	"github.com/cadence/academy/core/profile"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
	"github.com/cadence/academy/services/email"
	"github.com/cadence/academy/services/logger"
	"github.com/cadence/academy/services/ratelimit"
	"github.com/cadence/academy/services/storage"
	"github.com/cadence/academy/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	core.ParseEmailTemplates(nil, true /* strict */)
	os.Exit(m.Run())
}

// fixture is a Server backed by the in-memory database.
type fixture struct {
	conf      *core.Config
	app       *Server
	users     user.Repository
	profiles  profile.Repository
	catalog   training.Catalog
	store     training.Store
	questions assessment.Repository
	sessions  livesession.Repository
	userSvc   *user.Service
}

func setup(t *testing.T, limiter ...ratelimit.Limiter) *fixture {
	conf := core.NewTestConfig()
	conf.Storage.Dir = t.TempDir()

	lgr := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	lgr.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	f := &fixture{
		conf:      conf,
		users:     inmemdb.NewUserRepository(db),
		profiles:  inmemdb.NewProfileRepository(db),
		catalog:   inmemdb.NewCatalogRepository(db),
		store:     inmemdb.NewProgressRepository(db),
		questions: inmemdb.NewAssessmentRepository(db),
		sessions:  inmemdb.NewSessionRepository(db),
	}

	emailsvc.ResetSentMessages()
	notifier := notify.New(emailsvc.NewConsoleServiceMock(conf), conf, nil)

	f.userSvc = user.NewService(nil, f.users, notifier, conf)
	profileSvc := profile.NewService(f.profiles, f.userSvc)
	eval := training.NewEvaluator(f.catalog, f.store, conf.Training.PassPercentage, nil)
	trainingSvc := training.NewService(f.catalog, f.store, f.questions, eval, lgr)
	certSvc := certificate.NewService(inmemdb.NewCertificateRepository(db), trainingSvc,
		storage.NewLocalStorage(conf), certificate.NewSVGGenerator(), notifier, conf, lgr)
	assessmentSvc := assessment.NewServiceMock(assessment.Deps{
		Repo:      f.questions,
		Store:     f.store,
		Training:  trainingSvc,
		Profiles:  profileSvc,
		Notifier:  notifier,
		Certifier: certSvc,
		Logger:    lgr,
	}, conf)

	var lim ratelimit.Limiter = ratelimit.NewMemoryLimiter(100, time.Minute)
	if len(limiter) > 0 {
		lim = limiter[0]
	}

	f.app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         lgr,
		Validate:       validate,
		Translator:     translator,
		Limiter:        lim,
		DisableReqLogs: true,
		UserSvc:        f.userSvc,
		ProfileSvc:     profileSvc,
		TrainingSvc:    trainingSvc,
		AssessmentSvc:  assessmentSvc,
		CertificateSvc: certSvc,
		SessionSvc:     livesession.NewService(f.sessions, f.userSvc, notifier, conf, lgr),
		AnalyticsSvc:   analytics.NewService(inmemdb.NewAnalyticsRepository(db)),
	})
	return f
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	token, err := GenerateToken(f.conf, GetUserClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// do serves the request and returns the recorder.
func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type admissionErr struct {
	Error  string                 `json:"error"`
	Reason string                 `json:"reason"`
	Detail map[string]interface{} `json:"detail"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
