package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/config"
	"github.com/crmflow/crm-automation/internal/domain"
	"github.com/crmflow/crm-automation/internal/observability"
)

// Producer publishes action requests and mirrors workflow events. A producer
// built without brokers accepts every call and writes nothing.
type Producer struct {
	actionsWriter messageWriter
	eventsWriter  messageWriter
	logger        *zap.Logger
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// actionEnvelope wraps an action request with its kind.
type actionEnvelope struct {
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProducer creates a producer for the configured topics.
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	p := &Producer{logger: observability.Named(logger, "kafka")}
	if len(cfg.Brokers) == 0 {
		p.logger.Info("KAFKA_BROKERS not provided; outbox disabled")
		return p
	}
	p.actionsWriter = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.ActionsTopic,
		Balancer: &kafka.LeastBytes{},
	}
	p.eventsWriter = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.EventsTopic,
		Balancer: &kafka.LeastBytes{},
	}
	return p
}

// Enabled reports whether brokers are configured.
func (p *Producer) Enabled() bool {
	return p != nil && p.actionsWriter != nil
}

// PublishAction sends an action request to the actions topic.
func (p *Producer) PublishAction(ctx context.Context, kind, key string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(actionEnvelope{Kind: kind, Payload: payload, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s action: %w", kind, err)
	}
	if err := p.actionsWriter.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}},
	}); err != nil {
		return fmt.Errorf("write %s action: %w", kind, err)
	}
	p.logger.Debug("sent action to kafka", zap.String("kind", kind), zap.String("key", key))
	return nil
}

// PublishEvent mirrors a dispatched workflow event, keyed by entity id.
func (p *Producer) PublishEvent(ctx context.Context, event domain.WorkflowEvent) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode workflow event: %w", err)
	}
	if err := p.eventsWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EntityID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("write workflow event: %w", err)
	}
	p.logger.Debug("sent event to kafka", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	return nil
}

// Close closes the writers.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	if err := p.actionsWriter.Close(); err != nil {
		return err
	}
	return p.eventsWriter.Close()
}
