package mailer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"investor-portal/pkg/config"

	"golang.org/x/crypto/blake2b"
)

var ErrNotConfigured = errors.New("email configuration missing")

// Message is a single outbound email to one recipient.
type Message struct {
	From           string
	To             string
	ReplyTo        string
	Subject        string
	HTML           string
	Text           string
	IdempotencyKey string
}

type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// New builds the sender selected by MAIL_TRANSPORT. It returns
// ErrNotConfigured when the API key or sender address is missing.
func New(cfg *config.Config) (Sender, error) {
	if !cfg.MailConfigured() {
		return nil, ErrNotConfigured
	}
	defaults := Defaults{From: cfg.MailFrom, ReplyTo: cfg.MailReplyTo}
	switch cfg.MailTransport {
	case config.MailResend:
		return NewResendSender(cfg.ResendAPIURL, cfg.ResendAPIKey, defaults, cfg.MailSendTimeout), nil
	case config.MailSMTP:
		return NewSMTPSender(SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.ResendAPIKey,
			Timeout:  cfg.MailSendTimeout,
		}, defaults), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// Defaults fills envelope fields a caller left empty.
type Defaults struct {
	From    string
	ReplyTo string
}

func (d Defaults) apply(msg *Message) Message {
	out := *msg
	if out.From == "" {
		out.From = d.From
	}
	if out.ReplyTo == "" {
		out.ReplyTo = d.ReplyTo
	}
	return out
}

// IdempotencyKey derives a stable key from its parts, so the same logical
// send always maps to the same provider-side deduplication key.
func IdempotencyKey(prefix string, parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return prefix + "-" + hex.EncodeToString(sum[:16])
}
