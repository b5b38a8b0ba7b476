package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	updatedomain "investor-portal/internal/update/domain"
	"investor-portal/internal/update/repository"
	userdomain "investor-portal/internal/user/domain"
	userrepo "investor-portal/internal/user/repository"
	"investor-portal/pkg/apperror"
	"investor-portal/pkg/logger"
	"investor-portal/pkg/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRecipients []string

func (s staticRecipients) ListedEmails(context.Context) ([]string, error) { return s, nil }

type fakeLinker struct{}

func (fakeLinker) UnsubscribeURL(email string) string {
	return "https://ir.example.com/api/unsubscribe?token=" + email
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []*mailer.Message
	failFor map[string]bool
	failAll bool
	hangFor map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, msg *mailer.Message) error {
	if f.hangFor[msg.To] {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failAll || f.failFor[msg.To] {
		return errors.New("mailbox unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	uc      UpdateUsecase
	updates repository.UpdateRepository
	users   userrepo.UserRepository
}

func newFixture(recipients []string, sender mailer.Sender) *fixture {
	f := &fixture{
		updates: repository.NewMemoryUpdateRepository(),
		users:   userrepo.NewMemoryUserRepository(),
	}
	f.uc = NewUpdateUsecase(f.updates, staticRecipients(recipients), f.users, sender, fakeLinker{}, Config{
		SiteURL:       "https://ir.example.com",
		SubjectPrefix: "GoAiMEX Update",
		BatchSize:     50,
		SendTimeout:   time.Second,
	}, nil, nil, logger.Nop())
	return f
}

func emails(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("investor%03d@fund.com", i)
	}
	return out
}

const body = "Quarterly revenue grew **40%** on strong demand."

func TestSendUpdate_Validation(t *testing.T) {
	f := newFixture(nil, &fakeSender{})
	_, err := f.uc.SendUpdate(context.Background(), "", body)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.uc.SendUpdate(context.Background(), "Q3", "too short")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Title and content required.", apperror.Message(err))
}

func TestSendUpdate_MailNotConfigured(t *testing.T) {
	f := newFixture(emails(2), nil)
	_, err := f.uc.SendUpdate(context.Background(), "Q3", body)
	assert.ErrorIs(t, err, apperror.ErrUpstream)

	list, err := f.updates.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSendUpdate_NoRecipients(t *testing.T) {
	f := newFixture(nil, &fakeSender{})
	res, err := f.uc.SendUpdate(context.Background(), "Q3", body)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Zero(t, res.Recipients)

	stored, err := f.updates.Get(context.Background(), res.UpdateID)
	require.NoError(t, err)
	assert.True(t, stored.EmailSent)
}

func TestSendUpdate_AllDeliveredAcrossBatches(t *testing.T) {
	sender := &fakeSender{}
	f := newFixture(emails(120), sender)

	res, err := f.uc.SendUpdate(context.Background(), "Q3 results", body)
	require.NoError(t, err)
	assert.Equal(t, 120, res.Recipients)
	assert.Equal(t, 120, res.Sent)
	assert.Zero(t, res.Failed)
	assert.Equal(t, "Update sent successfully to 120 recipients.", res.Message)

	stored, err := f.updates.Get(context.Background(), res.UpdateID)
	require.NoError(t, err)
	assert.Equal(t, updatedomain.Delivery{EmailSent: true, Sent: 120}, updatedomain.Delivery{
		EmailSent: stored.EmailSent, Sent: stored.SentCount, Failed: stored.FailedCount,
	})

	keys := make(map[string]bool)
	for _, msg := range sender.sent {
		keys[msg.IdempotencyKey] = true
		assert.Equal(t, "GoAiMEX Update: Q3 results", msg.Subject)
		assert.Equal(t, mailer.IdempotencyKey("update", res.UpdateID, msg.To), msg.IdempotencyKey)
	}
	assert.Len(t, keys, 120)

	first := sender.sent[0]
	assert.Contains(t, first.Text, "https://ir.example.com/investor?update="+res.UpdateID)
	assert.Contains(t, first.Text, "Quarterly revenue grew 40% on strong demand.")
	assert.Contains(t, first.HTML, "api/unsubscribe?token="+first.To)
	assert.NotContains(t, first.Text, "**")
}

func TestSendUpdate_PartialFailure(t *testing.T) {
	all := emails(5)
	sender := &fakeSender{failFor: map[string]bool{all[1]: true, all[3]: true}}
	f := newFixture(all, sender)

	res, err := f.uc.SendUpdate(context.Background(), "Q3", body)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.FailedRecipients, 2)
	assert.ElementsMatch(t, []string{all[1], all[3]}, []string{res.FailedRecipients[0].Email, res.FailedRecipients[1].Email})
	assert.Equal(t, "Update sent to 3 recipients. 2 failed.", res.Message)

	stored, err := f.updates.Get(context.Background(), res.UpdateID)
	require.NoError(t, err)
	assert.False(t, stored.EmailSent)
	assert.Equal(t, 3, stored.SentCount)
	assert.Equal(t, 2, stored.FailedCount)
}

func TestSendUpdate_TotalFailureRollsBack(t *testing.T) {
	f := newFixture(emails(3), &fakeSender{failAll: true})

	res, err := f.uc.SendUpdate(context.Background(), "Q3", body)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	require.NotNil(t, res)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 3, res.Failed)

	stored, err := f.updates.Get(context.Background(), res.UpdateID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSendUpdate_SkipsOptedOut(t *testing.T) {
	sender := &fakeSender{}
	f := newFixture([]string{"a@fund.com", "b@fund.com", "c@fund.com"}, sender)
	userrepo.Seed(f.users, &userdomain.UserProfile{UID: "u1", Email: "b@fund.com", Subscribed: userdomain.Bool(false)})
	userrepo.Seed(f.users, &userdomain.UserProfile{UID: "u2", Email: "c@fund.com"})

	res, err := f.uc.SendUpdate(context.Background(), "Q3", body)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipients)
	var to []string
	for _, m := range sender.sent {
		to = append(to, m.To)
	}
	assert.ElementsMatch(t, []string{"a@fund.com", "c@fund.com"}, to)
}

func TestSendUpdate_HungSendFailsOnlyThatRecipient(t *testing.T) {
	all := emails(3)
	sender := &fakeSender{hangFor: map[string]bool{all[0]: true}}
	f := newFixture(all, sender)
	f.uc.(*updateUsecase).cfg.SendTimeout = 20 * time.Millisecond

	res, err := f.uc.SendUpdate(context.Background(), "Q3", body)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	require.Len(t, res.FailedRecipients, 1)
	assert.Equal(t, all[0], res.FailedRecipients[0].Email)
}

func TestListRecent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, &fakeSender{})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		require.NoError(t, f.updates.Create(ctx, &updatedomain.Update{
			Title: fmt.Sprintf("u%d", i), ContentMD: body, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	list, err := f.uc.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, DefaultListLimit)
	assert.Equal(t, "u7", list[0].Title)

	list, err = f.uc.ListRecent(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, list, 8)
}
