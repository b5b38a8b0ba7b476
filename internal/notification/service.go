package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"investor-portal/pkg/mailer"
	"investor-portal/pkg/metrics"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; color: #0f172a;">
  <h2 style="margin-bottom: 16px;">Welcome to {{.Brand}} Investor Updates</h2>
  <p style="color: #475569; line-height: 1.6;">
    You have been subscribed to receive investor updates from {{.Brand}}.
    We'll keep you informed about our milestones, metrics, and key developments.
  </p>
  <p style="margin-top: 24px;">
    <a href="{{.PortalURL}}" style="color: #2563eb; text-decoration: none; font-weight: 500;">View Investor Portal &rarr;</a>
  </p>
  {{- if .ReplyTo}}
  <div style="margin-top: 32px; padding-top: 16px; border-top: 1px solid #e2e8f0; font-size: 12px; color: #64748b;">
    <p style="margin: 0;">If you have any questions, please contact us at
      <a href="mailto:{{.ReplyTo}}" style="color: #2563eb; text-decoration: none;">{{.ReplyTo}}</a></p>
  </div>
  {{- end}}
</div>`))

// Service composes and sends the welcome email for newly listed investors.
type Service struct {
	sender  mailer.Sender
	brand   string
	siteURL string
	replyTo string
	metrics *metrics.Metrics
	logger  kitlog.Logger
}

// NewService accepts a nil sender; sends are then skipped with a warning.
func NewService(sender mailer.Sender, brand, siteURL, replyTo string, m *metrics.Metrics, logger kitlog.Logger) *Service {
	return &Service{
		sender:  sender,
		brand:   brand,
		siteURL: siteURL,
		replyTo: replyTo,
		metrics: m,
		logger:  kitlog.With(logger, "component", "notification"),
	}
}

func (s *Service) WelcomeMessage(email string) (*mailer.Message, error) {
	email = strings.ToLower(email)
	portal := s.siteURL + "/investor"

	var html bytes.Buffer
	if err := welcomeTemplate.Execute(&html, map[string]string{
		"Brand":     s.brand,
		"PortalURL": portal,
		"ReplyTo":   s.replyTo,
	}); err != nil {
		return nil, fmt.Errorf("render welcome email: %w", err)
	}

	subject := fmt.Sprintf("Welcome to %s Investor Updates", s.brand)
	text := fmt.Sprintf("%s\n\nYou have been subscribed to receive investor updates from %s. "+
		"We'll keep you informed about our milestones, metrics, and key developments.\n\n"+
		"View Investor Portal: %s", subject, s.brand, portal)
	if s.replyTo != "" {
		text += "\n\nIf you have any questions, please contact us at " + s.replyTo
	}

	return &mailer.Message{
		To:             email,
		ReplyTo:        s.replyTo,
		Subject:        subject,
		HTML:           html.String(),
		Text:           text,
		IdempotencyKey: "welcome-" + email,
	}, nil
}

func (s *Service) SendWelcome(ctx context.Context, email string) error {
	if s.sender == nil {
		level.Warn(s.logger).Log("msg", "email configuration missing, skipping welcome email", "email", email)
		return nil
	}

	msg, err := s.WelcomeMessage(email)
	if err != nil {
		return err
	}
	err = s.sender.Send(ctx, msg)
	s.metrics.WelcomeEmail(err)
	if err != nil {
		return fmt.Errorf("send welcome email to %s: %w", email, err)
	}
	level.Info(s.logger).Log("msg", "welcome email sent", "email", email)
	return nil
}
