package notify

import (
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/assessment"
	"github.com/cadence/academy/core/certificate"
	"github.com/cadence/academy/core/livesession"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

// Email templates, under fs/assets/templates/email.
const (
	TmplPasswordReset    = "password_reset"
	TmplAssessmentPassed = "assessment_passed"
	TmplAssessmentFailed = "assessment_failed"
	TmplModuleCompleted  = "module_completed"
	TmplCertificateReady = "certificate_ready"
	TmplSessionReminder  = "session_reminder"
)

// Notifier emails users about their account and training. Sending goes through core.EmailService,
// which delivers asynchronously; no method blocks on delivery or returns an error.
type Notifier struct {
	mailSvc         core.EmailService
	frontendBaseURL string
	metrics         core.Metrics
}

var (
	_ user.Mailer          = (*Notifier)(nil)
	_ assessment.Notifier  = (*Notifier)(nil)
	_ certificate.Notifier = (*Notifier)(nil)
	_ livesession.Notifier = (*Notifier)(nil)
)

func New(mailSvc core.EmailService, conf *core.Config, metrics core.Metrics) *Notifier {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Notifier{mailSvc: mailSvc, frontendBaseURL: conf.FrontendBaseURL, metrics: metrics}
}

func (n *Notifier) send(usr user.User, subject, tmpl string, data map[string]interface{}) {
	if usr.Email == "" || usr.IsDeleted() || usr.IsSuspended() {
		n.metrics.NotificationSent(tmpl, false)
		return
	}
	data["Name"] = usr.DisplayName()
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
	n.metrics.NotificationSent(tmpl, true)
}

func (n *Notifier) SendPasswordReset(usr user.User, uid, token string) {
	q := make(url.Values)
	q.Set("uid", uid)
	q.Set("token", token)
	n.send(usr, "Password Reset", TmplPasswordReset, map[string]interface{}{
		"URL": n.frontendBaseURL + "/password-reset?" + q.Encode(),
	})
}

func (n *Notifier) AssessmentPassed(usr user.User, title string, percentage int) {
	n.send(usr, "Assessment passed", TmplAssessmentPassed, map[string]interface{}{
		"Title": title,
		"Score": percentage,
		"URL":   n.frontendBaseURL + "/modules",
	})
}

func (n *Notifier) AssessmentFailed(usr user.User, title string, percentage int, retakeAt time.Time) {
	n.send(usr, "Assessment result", TmplAssessmentFailed, map[string]interface{}{
		"Title":    title,
		"Score":    percentage,
		"RetakeAt": retakeAt.UTC().Format("Mon Jan 2, 15:04 MST"),
		"URL":      n.frontendBaseURL + "/modules",
	})
}

func (n *Notifier) ModuleCompleted(usr user.User, mod training.Module) {
	n.send(usr, fmt.Sprintf("Module %d completed", mod.Number), TmplModuleCompleted, map[string]interface{}{
		"Number": mod.Number,
		"Title":  mod.Title,
		"URL":    n.frontendBaseURL + "/modules",
	})
}

func (n *Notifier) CertificateReady(usr user.User, cert certificate.Certificate) {
	n.send(usr, "Your certificate is ready", TmplCertificateReady, map[string]interface{}{
		"CertificateID": cert.ID,
		"AverageScore":  cert.AverageScore,
		"URL":           cert.URL,
	})
}

func (n *Notifier) SessionReminder(usr user.User, s livesession.Session) {
	n.send(usr, "Upcoming live session: "+s.Title, TmplSessionReminder, map[string]interface{}{
		"Title":    s.Title,
		"StartsAt": s.StartsAt.UTC().Format("Mon Jan 2, 15:04 MST"),
		"Duration": s.DurationMinutes,
		"JoinURL":  s.JoinURL,
	})
}
