package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	updatedomain "investor-portal/internal/update/domain"
	"investor-portal/internal/update/dto"
	"investor-portal/internal/update/repository"
	userdomain "investor-portal/internal/user/domain"
	"investor-portal/pkg/apperror"
	"investor-portal/pkg/events"
	"investor-portal/pkg/mailer"
	"investor-portal/pkg/markdown"
	"investor-portal/pkg/metrics"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
)

const (
	excerptLength      = 240
	DefaultListLimit   = 5
	MaxListLimit       = 50
	defaultBatchSize   = 50
	defaultSendTimeout = 15 * time.Second
)

// ErrDeliveryFailed means every recipient failed; the update was removed.
var ErrDeliveryFailed = fmt.Errorf("%w: all emails failed to send", apperror.ErrUpstream)

// RecipientSource yields every explicitly listed address.
type RecipientSource interface {
	ListedEmails(ctx context.Context) ([]string, error)
}

type ProfileLister interface {
	List(ctx context.Context) ([]*userdomain.UserProfile, error)
}

type UnsubscribeLinker interface {
	UnsubscribeURL(email string) string
}

type Config struct {
	SiteURL       string
	SubjectPrefix string
	ReplyTo       string
	BatchSize     int
	SendTimeout   time.Duration
}

type UpdateUsecase interface {
	SendUpdate(ctx context.Context, title, contentMD string) (*dto.SendUpdateResponse, error)
	ListRecent(ctx context.Context, limit int) ([]*updatedomain.Update, error)
}

type updateUsecase struct {
	updates    repository.UpdateRepository
	recipients RecipientSource
	profiles   ProfileLister
	sender     mailer.Sender
	links      UnsubscribeLinker
	renderer   *markdown.Renderer
	cfg        Config
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     kitlog.Logger
}

// NewUpdateUsecase accepts a nil sender; broadcasts are then rejected.
func NewUpdateUsecase(
	updates repository.UpdateRepository,
	recipients RecipientSource,
	profiles ProfileLister,
	sender mailer.Sender,
	links UnsubscribeLinker,
	cfg Config,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger kitlog.Logger,
) UpdateUsecase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &updateUsecase{
		updates:    updates,
		recipients: recipients,
		profiles:   profiles,
		sender:     sender,
		links:      links,
		renderer:   markdown.NewRenderer(),
		cfg:        cfg,
		publisher:  publisher,
		metrics:    m,
		logger:     kitlog.With(logger, "component", "broadcast"),
	}
}

func (u *updateUsecase) SendUpdate(ctx context.Context, title, contentMD string) (*dto.SendUpdateResponse, error) {
	title = strings.TrimSpace(title)
	contentMD = strings.TrimSpace(contentMD)
	if title == "" || utf8.RuneCountInString(contentMD) < updatedomain.MinContentLength {
		return nil, apperror.Validation("Title and content required.")
	}
	if u.sender == nil {
		return nil, apperror.Upstream("Email configuration missing.", mailer.ErrNotConfigured)
	}

	excerpt, err := u.renderer.Excerpt(contentMD, excerptLength)
	if err != nil {
		return nil, apperror.Upstream("Failed to render update.", err)
	}

	update := &updatedomain.Update{Title: title, ContentMD: contentMD}
	if err := u.updates.Create(ctx, update); err != nil {
		return nil, apperror.Upstream("Failed to save update.", err)
	}

	recipients, err := u.resolveRecipients(ctx)
	if err != nil {
		u.rollback(update.ID)
		return nil, apperror.Upstream("Failed to resolve recipients.", err)
	}

	if len(recipients) == 0 {
		if err := u.updates.RecordDelivery(ctx, update.ID, updatedomain.Delivery{EmailSent: true}); err != nil {
			level.Warn(u.logger).Log("msg", "failed to record delivery", "update", update.ID, "err", err)
		}
		return &dto.SendUpdateResponse{OK: true, UpdateID: update.ID, Recipients: 0}, nil
	}

	failed := u.deliver(ctx, update, excerpt, recipients)
	sent := len(recipients) - len(failed)
	u.metrics.BroadcastSends(sent, len(failed))

	res := &dto.SendUpdateResponse{
		OK:               true,
		UpdateID:         update.ID,
		Recipients:       len(recipients),
		Sent:             sent,
		Failed:           len(failed),
		FailedRecipients: failed,
	}

	if sent == 0 {
		u.rollback(update.ID)
		res.OK = false
		level.Error(u.logger).Log("msg", "broadcast failed for every recipient", "update", update.ID, "failed", len(failed))
		return res, ErrDeliveryFailed
	}

	if err := u.updates.RecordDelivery(ctx, update.ID, updatedomain.Delivery{
		EmailSent: len(failed) == 0,
		Sent:      sent,
		Failed:    len(failed),
	}); err != nil {
		// Mail is already out; report the send outcome regardless.
		level.Error(u.logger).Log("msg", "failed to record delivery", "update", update.ID, "err", err)
	}

	if len(failed) > 0 {
		res.Message = fmt.Sprintf("Update sent to %d recipients. %d failed.", sent, len(failed))
	} else {
		res.Message = fmt.Sprintf("Update sent successfully to %d recipients.", sent)
	}

	u.publisher.Publish(ctx, events.New(events.UpdateBroadcast, update.ID, map[string]string{
		"sent":   fmt.Sprint(sent),
		"failed": fmt.Sprint(len(failed)),
	}))
	level.Info(u.logger).Log("msg", "update broadcast", "update", update.ID, "sent", sent, "failed", len(failed))
	return res, nil
}

// resolveRecipients drops every address with an explicit opt-out.
func (u *updateUsecase) resolveRecipients(ctx context.Context) ([]string, error) {
	listed, err := u.recipients.ListedEmails(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := u.profiles.List(ctx)
	if err != nil {
		return nil, err
	}

	optedOut := make(map[string]bool)
	for _, p := range profiles {
		if !p.IsSubscribed() {
			optedOut[strings.ToLower(p.Email)] = true
		}
	}

	out := make([]string, 0, len(listed))
	for _, email := range listed {
		if !optedOut[email] {
			out = append(out, email)
		}
	}
	return out, nil
}

// deliver sends in sequential batches, concurrently within a batch.
func (u *updateUsecase) deliver(ctx context.Context, update *updatedomain.Update, excerpt string, recipients []string) []dto.FailedRecipient {
	var failed []dto.FailedRecipient

	for start := 0; start < len(recipients); start += u.cfg.BatchSize {
		batch := recipients[start:min(start+u.cfg.BatchSize, len(recipients))]
		errs := make([]error, len(batch))

		var g errgroup.Group
		for i, recipient := range batch {
			g.Go(func() error {
				errs[i] = u.sendOne(ctx, update, excerpt, recipient)
				return nil
			})
		}
		_ = g.Wait()

		for i, err := range errs {
			if err != nil {
				level.Warn(u.logger).Log("msg", "send failed", "update", update.ID, "email", batch[i], "err", err)
				failed = append(failed, dto.FailedRecipient{Email: batch[i], Error: err.Error()})
			}
		}
	}
	return failed
}

func (u *updateUsecase) sendOne(ctx context.Context, update *updatedomain.Update, excerpt, recipient string) error {
	msg, err := u.compose(update, excerpt, recipient)
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, u.cfg.SendTimeout)
	defer cancel()
	return u.sender.Send(sendCtx, msg)
}

var updateTemplate = template.Must(template.New("update").Parse(`<div style="font-family: Arial, sans-serif; color: #0f172a;">
  <h2 style="margin-bottom: 8px;">{{.Title}}</h2>
  <p style="margin-top: 0; color: #475569;">{{.Excerpt}}</p>
  <p><a href="{{.UpdateURL}}" style="color: #2563eb; text-decoration: none;">View full update</a></p>
  <div style="margin-top: 24px; padding-top: 16px; border-top: 1px solid #e2e8f0; font-size: 12px; color: #64748b;">
    {{- if .UnsubscribeURL}}
    <p style="margin: 0;">Don't want these emails? <a href="{{.UnsubscribeURL}}" style="color: #2563eb; text-decoration: none;">Unsubscribe</a></p>
    {{- else if .ReplyTo}}
    <p style="margin: 0;">If you do not wish to receive these updates, please email us at
      <a href="mailto:{{.ReplyTo}}" style="color: #2563eb; text-decoration: none;">{{.ReplyTo}}</a></p>
    {{- end}}
  </div>
</div>`))

func (u *updateUsecase) compose(update *updatedomain.Update, excerpt, recipient string) (*mailer.Message, error) {
	updateURL := u.cfg.SiteURL + "/investor?update=" + update.ID
	var unsubscribeURL string
	if u.links != nil {
		unsubscribeURL = u.links.UnsubscribeURL(recipient)
	}

	var html bytes.Buffer
	if err := updateTemplate.Execute(&html, map[string]string{
		"Title":          update.Title,
		"Excerpt":        excerpt,
		"UpdateURL":      updateURL,
		"UnsubscribeURL": unsubscribeURL,
		"ReplyTo":        u.cfg.ReplyTo,
	}); err != nil {
		return nil, fmt.Errorf("render update email: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\nView full update: %s", update.Title, excerpt, updateURL)
	switch {
	case unsubscribeURL != "":
		text += "\n\nUnsubscribe: " + unsubscribeURL
	case u.cfg.ReplyTo != "":
		text += "\n\nIf you do not wish to receive these updates, please email us at " + u.cfg.ReplyTo
	}

	return &mailer.Message{
		To:             recipient,
		ReplyTo:        u.cfg.ReplyTo,
		Subject:        fmt.Sprintf("%s: %s", u.cfg.SubjectPrefix, update.Title),
		HTML:           html.String(),
		Text:           text,
		IdempotencyKey: mailer.IdempotencyKey("update", update.ID, recipient),
	}, nil
}

// rollback runs detached so a cancelled request still removes the update.
func (u *updateUsecase) rollback(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := u.updates.Delete(ctx, id); err != nil {
		level.Error(u.logger).Log("msg", "failed to remove unsent update", "update", id, "err", err)
	}
}

func (u *updateUsecase) ListRecent(ctx context.Context, limit int) ([]*updatedomain.Update, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	updates, err := u.updates.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperror.Upstream("Failed to load updates.", err)
	}
	return updates, nil
}
