package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ResendSender talks to the Resend HTTP API.
type ResendSender struct {
	client   *resty.Client
	defaults Defaults
}

func NewResendSender(baseURL, apiKey string, defaults Defaults, timeout time.Duration) *ResendSender {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &ResendSender{client: client, defaults: defaults}
}

func (s *ResendSender) Send(ctx context.Context, msg *Message) error {
	m := s.defaults.apply(msg)

	req := s.client.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    m.From,
			To:      []string{m.To},
			Subject: m.Subject,
			HTML:    m.HTML,
			Text:    m.Text,
			ReplyTo: m.ReplyTo,
		}).
		SetResult(&resendResponse{}).
		SetError(&resendError{})
	if m.IdempotencyKey != "" {
		req.SetHeader("Idempotency-Key", m.IdempotencyKey)
	}

	resp, err := req.Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*resendError); ok && e.Message != "" {
			return fmt.Errorf("resend rejected message (%d): %s", resp.StatusCode(), e.Message)
		}
		return fmt.Errorf("resend rejected message: status %d", resp.StatusCode())
	}
	return nil
}
