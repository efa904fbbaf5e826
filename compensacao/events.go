package compensacao

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/compensacao_backend/models"
)

// RemediationEvent is published after a remediation command succeeds.
type RemediationEvent struct {
	Action        string                       `json:"action"`
	RecordId      string                       `json:"record_id"`
	Message       string                       `json:"message"`
	OperatorId    string                       `json:"operator_id,omitempty"`
	CorrelationId string                       `json:"correlation_id,omitempty"`
	OccurredAt    time.Time                    `json:"occurred_at"`
	Record        *models.ReconciliationRecord `json:"record,omitempty"`
}

type EventPublisher interface {
	PublishRemediation(ctx context.Context, event RemediationEvent) error
}

type PubSubPublisher struct {
	topic *pubsub.Topic
}

func NewPubSubPublisher(client *pubsub.Client, topicName string) (*PubSubPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topicName == "" {
		return nil, errors.New("topic is required")
	}
	return &PubSubPublisher{topic: client.Topic(topicName)}, nil
}

func (p *PubSubPublisher) PublishRemediation(ctx context.Context, event RemediationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"action":    event.Action,
			"record_id": event.RecordId,
		},
	})
	_, err = res.Get(ctx)
	return err
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
