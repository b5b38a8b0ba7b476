package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"investor-portal/pkg/config"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKey_Stable(t *testing.T) {
	a := IdempotencyKey("update", "u1", "a@example.com")
	b := IdempotencyKey("update", "u1", "a@example.com")
	c := IdempotencyKey("update", "u1", "b@example.com")
	d := IdempotencyKey("update", "u1a", "@example.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.True(t, strings.HasPrefix(a, "update-"))
	assert.Len(t, a, len("update-")+32)
}

func TestNew_NotConfigured(t *testing.T) {
	_, err := New(&config.Config{MailTransport: config.MailSMTP})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_SelectsTransport(t *testing.T) {
	cfg := &config.Config{ResendAPIKey: "re_x", MailFrom: "ir@goaimex.com", MailTransport: config.MailResend, ResendAPIURL: "https://api.resend.com"}
	s, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ResendSender{}, s)

	cfg.MailTransport = config.MailSMTP
	s, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)
}

func TestSMTPOptions_ImplicitTLS(t *testing.T) {
	assert.True(t, SMTPOptions{Port: 465}.implicitTLS())
	assert.True(t, SMTPOptions{Port: 2465}.implicitTLS())
	assert.False(t, SMTPOptions{Port: 587}.implicitTLS())
}

func TestCompose(t *testing.T) {
	var buf bytes.Buffer
	err := compose(&buf, &Message{
		From:           "GoAiMEX <ir@goaimex.com>",
		To:             "investor@example.com",
		ReplyTo:        "mdil@goaimex.com",
		Subject:        "GoAiMEX Update: Q3",
		Text:           "plain body",
		HTML:           "<p>html body</p>",
		IdempotencyKey: "update-abc",
	})
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Resend-Idempotency-Key: update-abc")
	assert.Contains(t, raw, "Subject: GoAiMEX Update: Q3")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "<p>html body</p>")
	assert.Contains(t, raw, "Reply-To:")
}

func TestCompose_InvalidRecipient(t *testing.T) {
	var buf bytes.Buffer
	err := compose(&buf, &Message{From: "ir@goaimex.com", To: "not an address"})
	assert.Error(t, err)
}

func newMockedResend(t *testing.T) *ResendSender {
	t.Helper()
	s := NewResendSender("https://api.resend.test", "re_key", Defaults{From: "ir@goaimex.com", ReplyTo: "mdil@goaimex.com"}, 5*time.Second)
	httpmock.ActivateNonDefault(s.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestResendSender_Send(t *testing.T) {
	s := newMockedResend(t)

	var got resendRequest
	var gotKey, gotAuth string
	httpmock.RegisterResponder(http.MethodPost, "https://api.resend.test/emails",
		func(req *http.Request) (*http.Response, error) {
			gotKey = req.Header.Get("Idempotency-Key")
			gotAuth = req.Header.Get("Authorization")
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"id": "em_1"})
		})

	err := s.Send(context.Background(), &Message{
		To:             "a@example.com",
		Subject:        "Hello",
		Text:           "body",
		IdempotencyKey: "welcome-abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "welcome-abc", gotKey)
	assert.Equal(t, "Bearer re_key", gotAuth)
	assert.Equal(t, "ir@goaimex.com", got.From)
	assert.Equal(t, "mdil@goaimex.com", got.ReplyTo)
	assert.Equal(t, []string{"a@example.com"}, got.To)
}

func TestResendSender_Rejected(t *testing.T) {
	s := newMockedResend(t)
	httpmock.RegisterResponder(http.MethodPost, "https://api.resend.test/emails",
		httpmock.NewJsonResponderOrPanic(http.StatusUnprocessableEntity, map[string]string{
			"name":    "validation_error",
			"message": "Invalid `to` field.",
		}))

	err := s.Send(context.Background(), &Message{To: "bad", Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid `to` field.")
}
