package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"investor-portal/pkg/logger"
	"investor-portal/pkg/mailer"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestWelcomeMessage(t *testing.T) {
	svc := NewService(nil, "GoAiMEX", "https://ir.example.com", "ir@example.com", nil, logger.Nop())

	msg, err := svc.WelcomeMessage("New@Investor.com")
	require.NoError(t, err)
	assert.Equal(t, "new@investor.com", msg.To)
	assert.Equal(t, "Welcome to GoAiMEX Investor Updates", msg.Subject)
	assert.Equal(t, "welcome-new@investor.com", msg.IdempotencyKey)
	assert.Equal(t, "ir@example.com", msg.ReplyTo)
	assert.Contains(t, msg.HTML, `href="https://ir.example.com/investor"`)
	assert.Contains(t, msg.Text, "View Investor Portal: https://ir.example.com/investor")
}

func TestSendWelcome_WithoutSenderSkips(t *testing.T) {
	svc := NewService(nil, "GoAiMEX", "", "", nil, logger.Nop())
	assert.NoError(t, svc.SendWelcome(context.Background(), "a@b.com"))
}

func TestWorkerPool_Delivers(t *testing.T) {
	sender := &fakeSender{}
	pool := NewWorkerPool(NewService(sender, "GoAiMEX", "", "", nil, logger.Nop()), 2, time.Second, logger.Nop())
	pool.Start()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, pool.NotifyWelcome(context.Background(), email))
	}
	pool.Stop()

	assert.Equal(t, 3, sender.count())
	assert.ErrorIs(t, pool.NotifyWelcome(context.Background(), "late@x.com"), ErrQueueFull)
}

func TestWorkerPool_ReportsFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	pool := NewWorkerPool(NewService(sender, "GoAiMEX", "", "", nil, logger.Nop()), 1, time.Second, logger.Nop())
	pool.Start()

	require.NoError(t, pool.NotifyWelcome(context.Background(), "a@x.com"))
	pool.Stop()

	var failures []Failure
	for f := range pool.Failures() {
		failures = append(failures, f)
	}
	require.Len(t, failures, 1)
	assert.Equal(t, "a@x.com", failures[0].Email)
}

func TestHandleWelcomeTask(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, "GoAiMEX", "", "", nil, logger.Nop())

	task, err := NewWelcomeTask("a@x.com")
	require.NoError(t, err)
	require.NoError(t, svc.HandleWelcomeTask(context.Background(), task))
	assert.Equal(t, 1, sender.count())

	err = svc.HandleWelcomeTask(context.Background(), asynq.NewTask(TypeWelcomeEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRetryDelayIsCapped(t *testing.T) {
	assert.Equal(t, time.Minute, retryDelay(1, nil, nil))
	assert.Equal(t, 30*time.Minute, retryDelay(10, nil, nil))
}
