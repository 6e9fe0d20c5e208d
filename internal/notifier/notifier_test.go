package notifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/report"
)

type fakeSender struct {
	to, subject, html, plain string
	err                      error
}

func (f *fakeSender) Send(to, subject, htmlBody, plainBody string) error {
	f.to, f.subject, f.html, f.plain = to, subject, htmlBody, plainBody
	return f.err
}

func TestSendReport(t *testing.T) {
	fs := &fakeSender{}
	n := New(fs, "me@example.com")

	r := &report.Report{Subject: "clap4me: 3 articles", HTMLBody: "<b>3</b>", PlainBody: "3"}
	require.NoError(t, n.SendReport(r))
	assert.Equal(t, "me@example.com", fs.to)
	assert.Equal(t, r.Subject, fs.subject)
	assert.Equal(t, r.HTMLBody, fs.html)
	assert.Equal(t, r.PlainBody, fs.plain)
}

func TestSendReportPropagatesError(t *testing.T) {
	n := New(&fakeSender{err: errors.New("down")}, "me@example.com")
	assert.Error(t, n.SendReport(&report.Report{}))
	assert.Error(t, n.SendReport(nil))
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.EmailConfig{Provider: "smtp", SMTPHost: "localhost", SMTPPort: 25, ToAddr: "a@b.c"})
	require.NoError(t, err)

	_, err = NewFromConfig(config.EmailConfig{Provider: "sendgrid"})
	assert.Error(t, err)
}
