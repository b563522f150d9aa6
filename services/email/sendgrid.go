package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/cadence/academy/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	maxSendAttempts  = 3
)

var (
	sendFunc   = sendgrid.API // mockable
	retryDelay = 2 * time.Second
)

// sendgridService delivers messages through the SendGrid v3 mail API.
// Every message is tagged with the app category plus its template name, so
// delivery stats can be split per notification kind in the SendGrid dashboard.
type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	env        string
	category   string
	base       core.ContextData
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		env:        conf.Env,
		category:   conf.AppName,
		base:       core.ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL},
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.base); err != nil {
				svc.logger.Error(fmt.Sprintf("emailsvc: rendering %q", msg.TemplateName), err)
				return
			}
			if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
				return
			}
			if err := svc.deliver(*msg); err != nil {
				svc.logger.Error("emailsvc: sendgrid delivery failed", err, map[string]interface{}{
					"template": msg.TemplateName,
					"to":       len(msg.To),
				})
			}
		}()
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(toSGEmails(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(toSGEmails(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(toSGEmails(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	categories := []string{svc.category}
	if msg.TemplateName != "" {
		categories = append(categories, msg.TemplateName)
	}
	m.AddCategories(categories...)
	if svc.env != "" {
		m.SetCustomArg("env", svc.env)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func toSGEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}

// retryable reports whether SendGrid may accept the same request later.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// deliver posts msg, retrying transport errors, 429s and 5xx responses.
func (svc sendgridService) deliver(msg core.EmailMessage) error {
	body := sgmail.GetRequestBody(svc.prepare(msg))

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * retryDelay)
		}

		req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
		req.Method = rest.Post
		req.Body = body

		res, err := sendFunc(req)
		switch {
		case err != nil:
			lastErr = errors.Wrap(err, "posting to sendgrid")
		case retryable(res.StatusCode):
			lastErr = errors.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return errors.Errorf("sendgrid rejected message, status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
		svc.logger.Warn(fmt.Sprintf("emailsvc: sendgrid attempt %d/%d failed", attempt, maxSendAttempts), lastErr)
	}
	return lastErr
}
