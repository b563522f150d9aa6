package core

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	ParseEmailTemplates(nil, true)
	base := ContextData{AppName: "Academy", FrontendBaseURL: "https://academy.test"}

	t.Run("template", func(t *testing.T) {
		msg := EmailMessage{
			TemplateName: "module_completed",
			TemplateData: map[string]interface{}{"Name": "Ada", "Number": 2, "Title": "Facilitation", "URL": "https://academy.test/modules/3"},
		}
		require.NoError(t, msg.Render(base))
		assert.Contains(t, msg.TextContent, "you completed module 2: Facilitation")
		assert.Contains(t, msg.HTMLContent, "Facilitation")
	})

	t.Run("missing key", func(t *testing.T) {
		msg := EmailMessage{TemplateName: "module_completed", TemplateData: map[string]interface{}{"Name": "Ada", "Number": 2}}
		assert.Error(t, msg.Render(base))
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := EmailMessage{TemplateName: "newsletter"}
		assert.EqualError(t, msg.Render(base), `unknown email template "newsletter"`)
	})

	t.Run("plain body", func(t *testing.T) {
		msg := EmailMessage{BodyStr: "hello"}
		require.NoError(t, msg.Render(base))
		assert.Equal(t, "hello", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
		assert.True(t, msg.HasContent())
	})
}

func TestEmailMessage_Attach(t *testing.T) {
	var msg EmailMessage
	require.NoError(t, msg.Attach(strings.NewReader("<svg></svg>"), "certificate.svg", "image/svg+xml"))
	require.NoError(t, msg.Attach(bytes.NewReader([]byte("plain words")), "notes.txt"))

	require.Len(t, msg.Attachments, 2)
	assert.True(t, msg.HasAttachments())
	assert.Equal(t, "image/svg+xml", msg.Attachments[0].ContentType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("<svg></svg>")), msg.Attachments[0].Content.String())
	assert.Equal(t, "text/plain; charset=utf-8", msg.Attachments[1].ContentType)
}
