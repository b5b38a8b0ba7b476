package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const idempotencyHeader = "Resend-Idempotency-Key"

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Implicit TLS ports; everything else upgrades with STARTTLS.
func (o SMTPOptions) implicitTLS() bool {
	return o.Port == 465 || o.Port == 2465
}

type SMTPSender struct {
	opts     SMTPOptions
	defaults Defaults
}

func NewSMTPSender(opts SMTPOptions, defaults Defaults) *SMTPSender {
	return &SMTPSender{opts: opts, defaults: defaults}
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.defaults.apply(msg)

	var buf bytes.Buffer
	if err := compose(&buf, &m); err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	var client *smtp.Client
	if s.opts.implicitTLS() {
		client, err = smtp.DialTLS(addr, nil)
	} else {
		client, err = smtp.DialStartTLS(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		client.CommandTimeout = remaining
		client.SubmissionTimeout = remaining
	} else if s.opts.Timeout > 0 {
		client.CommandTimeout = s.opts.Timeout
		client.SubmissionTimeout = s.opts.Timeout
	}

	if err := client.Auth(sasl.NewPlainClient("", s.opts.Username, s.opts.Password)); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := client.SendMail(from.Address, []string{m.To}, &buf); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", m.To, err)
	}
	return client.Quit()
}

// compose writes a multipart/alternative message with text and HTML bodies.
func compose(w io.Writer, m *Message) error {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return err
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return err
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	if m.ReplyTo != "" {
		if replyTo, err := mail.ParseAddress(m.ReplyTo); err == nil {
			h.SetAddressList("Reply-To", []*mail.Address{replyTo})
		}
	}
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return err
	}
	if m.IdempotencyKey != "" {
		h.Set(idempotencyHeader, m.IdempotencyKey)
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return err
	}
	if err := writePart(tw, "text/plain", m.Text); err != nil {
		return err
	}
	if m.HTML != "" {
		if err := writePart(tw, "text/html", m.HTML); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return mw.Close()
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return err
	}
	return pw.Close()
}
