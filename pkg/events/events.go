package events

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	EmailAdded      = "allowlist.email_added"
	EmailRemoved    = "allowlist.email_removed"
	DomainAdded     = "allowlist.domain_added"
	DomainRemoved   = "allowlist.domain_removed"
	UserSynced      = "user.synced"
	UserUnsubscribe = "user.unsubscribed"
	UpdateBroadcast = "update.broadcast"
)

type Event struct {
	Type       string            `json:"type"`
	Subject    string            `json:"subject"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func New(eventType, subject string, attrs map[string]string) Event {
	return Event{Type: eventType, Subject: subject, Attributes: attrs, OccurredAt: time.Now().UTC()}
}

// Publisher emits audit events. Publishing is best effort and never fails
// the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}
func (NoopPublisher) Close() error                   { return nil }

type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger kitlog.Logger
}

func NewPubSubPublisher(ctx context.Context, projectID, topicID string, logger kitlog.Logger) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &PubSubPublisher{
		client: client,
		topic:  client.Topic(topicID),
		logger: kitlog.With(logger, "component", "events"),
	}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		level.Error(p.logger).Log("msg", "failed to encode event", "type", ev.Type, "err", err)
		return
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": ev.Type},
	})
	go func() {
		getCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := res.Get(getCtx); err != nil {
			level.Warn(p.logger).Log("msg", "event publish failed", "type", ev.Type, "err", err)
		}
	}()
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
