package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	appfs "github.com/cadence/academy/fs"
)

const emailTemplatesDir = "assets/templates/email"

// emailTemplate pairs the text and html renditions of one email, both optional.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

var (
	templates map[string]*emailTemplate // by name, without ext
	tmplInit  sync.Once
)

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what email templates are executed with.
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent and HTMLContent. base carries the app-wide template values.
// BodyStr, when set, is used verbatim as the text content.
func (m *EmailMessage) Render(base ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(func() { parseTemplates(nil, true) })
	tmpl, ok := templates[m.TemplateName]
	if !ok {
		return fmt.Errorf("unknown email template %q", m.TemplateName)
	}
	base.Data = m.TemplateData

	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.Execute(&buf, base); err != nil {
			return fmt.Errorf("%s.txt: %w", m.TemplateName, err)
		}
		m.TextContent = buf.String()
	}
	if tmpl.html != nil {
		buf.Reset()
		if err := tmpl.html.Execute(&buf, base); err != nil {
			return fmt.Errorf("%s.gohtml: %w", m.TemplateName, err)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err = encoder.Write(content); err != nil {
		return err
	}
	if err = encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the embedded email templates once.
// strict makes missing template keys fail rendering (dev & test).
func ParseEmailTemplates(logger Logger, strict bool) {
	tmplInit.Do(func() { parseTemplates(logger, strict) })
}

func parseTemplates(logger Logger, strict bool) {
	templates = make(map[string]*emailTemplate)
	logErr := func(err error) {
		err = fmt.Errorf("core.parseTemplates: %w", err)
		if logger != nil {
			logger.Error(err.Error(), err)
		} else {
			log.Print(err)
		}
	}
	option := "missingkey=default"
	if strict {
		option = "missingkey=error"
	}

	fps, err := fs.Glob(appfs.FS, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logErr(err)
		return
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") {
			continue // layouts
		}
		name := strings.TrimSuffix(fname, ext)
		tmpl := templates[name]
		if tmpl == nil {
			tmpl = new(emailTemplate)
		}

		switch ext {
		case ".txt":
			t, err := texttmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				logErr(err)
				continue
			}
			tmpl.text = t.Option(option)
		case ".gohtml":
			t, err := htmltmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				logErr(err)
				continue
			}
			tmpl.html = t.Option(option)
		default:
			continue
		}
		templates[name] = tmpl
	}
}
