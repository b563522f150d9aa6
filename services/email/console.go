package emailsvc

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cadence/academy/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// ResetSentMessages clears the messages captured by the console services.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	mu.Unlock()
}

// SentTo returns the captured messages sent to address.
func SentTo(address string) []core.EmailMessage {
	mu.Lock()
	defer mu.Unlock()
	var msgs []core.EmailMessage
	for _, msg := range SentMessages {
		for _, to := range msg.To {
			if to.Address == address {
				msgs = append(msgs, msg)
				break
			}
		}
	}
	return msgs
}

func capture(msg core.EmailMessage) {
	mu.Lock()
	SentMessages = append(SentMessages, msg)
	mu.Unlock()
}

// consoleService prints MIME-formatted messages instead of delivering them.
// Used in development and by the admin CLI when no SendGrid key is configured.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	base       core.ContextData
	out        io.Writer // nil discards output
}

var _ core.EmailService = (*consoleService)(nil)

func newConsoleService(conf *core.Config) consoleService {
	return consoleService{
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		base:       core.ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL},
		out:        log.Writer(),
	}
}

func NewConsoleService(conf *core.Config) core.EmailService {
	svc := newConsoleService(conf)
	return &svc
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.process(msg)
	}
}

func (svc consoleService) process(msg *core.EmailMessage) {
	if err := msg.Render(svc.base); err != nil {
		log.Printf("%+v", errors.Wrapf(err, "rendering %q email", msg.TemplateName))
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	raw, err := svc.compose(*msg, time.Now())
	if err != nil {
		log.Printf("%+v", err)
		return
	}
	if svc.out != nil {
		_, _ = fmt.Fprintf(svc.out, "%s\n", raw)
	}
	capture(*msg)
}

// compose writes msg as a multipart message: alternative text/html bodies,
// wrapped in multipart/mixed when it has attachments.
func (svc consoleService) compose(msg core.EmailMessage, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
		}
	}
	header("From", svc.from.String())
	header("To", joinAddresses(msg.To))
	header("Cc", joinAddresses(msg.Cc))
	header("Bcc", joinAddresses(msg.Bcc))
	header("Subject", mime.QEncoding.Encode("utf-8", svc.subjPrefix+msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	root := multipart.NewWriter(&buf)
	if msg.HasAttachments() {
		header("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": root.Boundary()}))
		buf.WriteString("\r\n")

		var altBuf bytes.Buffer
		alt := multipart.NewWriter(&altBuf)
		w, err := root.CreatePart(textproto.MIMEHeader{
			"Content-Type": {mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": alt.Boundary()})},
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating multipart/alternative part")
		}
		if err := writeAlternatives(alt, msg); err != nil {
			return nil, err
		}
		if _, err := w.Write(altBuf.Bytes()); err != nil {
			return nil, errors.Wrap(err, "writing multipart/alternative part")
		}
		for _, at := range msg.Attachments {
			w, err := root.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {at.ContentType},
				"Content-Transfer-Encoding": {"base64"},
				"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": at.Filename})},
			})
			if err != nil {
				return nil, errors.Wrapf(err, "creating %s part", at.ContentType)
			}
			fmt.Fprintf(w, "%s\r\n", at.Content.String())
		}
	} else {
		header("Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": root.Boundary()}))
		buf.WriteString("\r\n")
		if err := writeAlternatives(root, msg); err != nil {
			return nil, err
		}
	}

	if err := root.Close(); err != nil {
		return nil, errors.Wrap(err, "closing message")
	}
	return buf.Bytes(), nil
}

func writeAlternatives(w *multipart.Writer, msg core.EmailMessage) error {
	parts := []struct{ typ, content string }{{"text/plain", msg.TextContent}}
	if msg.HTMLContent != "" {
		parts = append(parts, struct{ typ, content string }{"text/html", msg.HTMLContent})
	}
	for _, p := range parts {
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {p.typ + "; charset=utf-8"}})
		if err != nil {
			return errors.Wrapf(err, "creating %s part", p.typ)
		}
		fmt.Fprintf(pw, "%s\r\n", p.content)
	}
	return w.Close()
}

func joinAddresses(addrs []mail.Address) string {
	s := make([]string, 0, len(addrs))
	for _, a := range addrs {
		s = append(s, a.String())
	}
	return strings.Join(s, ", ")
}

type consoleServiceMock struct {
	consoleService
}

// NewConsoleServiceMock sends synchronously, without output; messages are captured in SentMessages.
func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	svc := newConsoleService(conf)
	svc.out = nil
	return &consoleServiceMock{consoleService: svc}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.process(msg)
	}
}
