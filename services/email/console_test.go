package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/fs"
	"github.com/trezcool/elimu/tests"
)

type resultData struct {
	Name          string
	CourseTitle   string
	Score         int
	Total         int
	Percentage    int
	Verdict       string
	AutoSubmitted bool
}

func TestConsoleServiceMock_RendersTemplates(t *testing.T) {
	conf := core.NewTestConfig()
	core.ParseEmailTemplates(appfs.FS, true, testutil.NewLogger())
	svc := NewConsoleServiceMock(conf)

	mu.Lock()
	before := len(SentMessages)
	mu.Unlock()

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Amani", Address: "amani@test.cd"}},
			Subject:      "Your quiz result: Go 101",
			TemplateName: "quiz_result",
			TemplateData: resultData{
				Name: "Amani", CourseTitle: "Go 101", Score: 2, Total: 3, Percentage: 67,
				Verdict: "Good job! Review the lessons you missed.", AutoSubmitted: true,
			},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
	)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, SentMessages, before+1)
	msg := SentMessages[len(SentMessages)-1]
	assert.Contains(t, msg.TextContent, "Score: 2/3 (67%)")
	assert.Contains(t, msg.TextContent, "Time ran out")
	assert.Contains(t, msg.TextContent, conf.FrontendBaseURL)
	assert.Contains(t, msg.HTMLContent, "<strong>Go 101</strong>")
}

func TestSendgridService_Prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, testutil.NewLogger()).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Amani", Address: "amani@test.cd"}},
		Cc:          []mail.Address{{Address: "cc@test.cd"}},
		Subject:     "hello",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] hello", p.Subject)
	assert.Equal(t, "amani@test.cd", p.To[0].Address)
	assert.Equal(t, "cc@test.cd", p.CC[0].Address)
	assert.Equal(t, conf.DefaultFromEmail.Address, m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
