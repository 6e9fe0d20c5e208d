package providers

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderBuildsMultipartMessage(t *testing.T) {
	s := NewSMTPSender("mail.example.com", 2525, "bot", "secret", "bot@example.com")
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, s.Send("me@example.com", "clap4me report", "<p>hi</p>", "hi"))

	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"me@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: clap4me report\r\n")
	assert.Contains(t, msg, "Date: Fri, 01 Mar 2024 12:00:00 +0000\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	plain := strings.Index(msg, "text/plain")
	html := strings.Index(msg, "text/html")
	assert.True(t, plain > 0 && html > plain, "plain part precedes html part")
	assert.True(t, strings.HasSuffix(msg, "--\r\n"))
}

func TestSMTPSenderWithoutCredentialsSkipsAuth(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "bot@example.com")
	var gotAuth smtp.Auth = smtp.PlainAuth("", "x", "y", "z")
	s.send = func(_ string, a smtp.Auth, _ string, _ []string, _ []byte) error {
		gotAuth = a
		return nil
	}
	require.NoError(t, s.Send("me@example.com", "s", "h", "p"))
	assert.Nil(t, gotAuth)
}

func TestSMTPSenderWrapsError(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "bot@example.com")
	boom := errors.New("connection refused")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := s.Send("me@example.com", "s", "h", "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
