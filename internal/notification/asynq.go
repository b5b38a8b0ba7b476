package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
)

const TypeWelcomeEmail = "notification:welcome"

type welcomePayload struct {
	Email string `json:"email"`
}

func NewWelcomeTask(email string) (*asynq.Task, error) {
	payload, err := json.Marshal(welcomePayload{Email: email})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWelcomeEmail, payload), nil
}

// AsynqDispatcher queues welcome emails in Redis so they survive restarts
// and are retried with backoff.
type AsynqDispatcher struct {
	client *asynq.Client
	logger kitlog.Logger
}

func NewAsynqDispatcher(client *asynq.Client, logger kitlog.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: kitlog.With(logger, "component", "notification_queue")}
}

func (d *AsynqDispatcher) NotifyWelcome(ctx context.Context, email string) error {
	task, err := NewWelcomeTask(email)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.TaskID("welcome:"+email),
		asynq.Retention(24*time.Hour))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Already queued or recently sent.
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue welcome email: %w", err)
	}
	level.Debug(d.logger).Log("msg", "welcome email queued", "task", info.ID)
	return nil
}

// HandleWelcomeTask is the asynq handler for TypeWelcomeEmail.
func (s *Service) HandleWelcomeTask(ctx context.Context, t *asynq.Task) error {
	var p welcomePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.Email == "" {
		return fmt.Errorf("welcome task without email: %w", asynq.SkipRetry)
	}
	return s.SendWelcome(ctx, p.Email)
}

func retryDelay(attempt int, _ error, _ *asynq.Task) time.Duration {
	delay := 30 * time.Second * time.Duration(1<<attempt)
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	return delay
}

// NewAsynqServer builds the task server processing welcome emails.
func NewAsynqServer(redisOpt asynq.RedisClientOpt, service *Service, concurrency int, debug bool) (*asynq.Server, *asynq.ServeMux) {
	logLevel := asynq.InfoLevel
	if !debug {
		logLevel = asynq.WarnLevel
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:    concurrency,
		LogLevel:       logLevel,
		RetryDelayFunc: retryDelay,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeWelcomeEmail, service.HandleWelcomeTask)
	return server, mux
}
