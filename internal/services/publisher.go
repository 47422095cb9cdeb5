package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/ternarybob/arbor"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher publishes finished analyses to Kafka. It is a Notifier that
// ignores every message except analysisComplete and analysisError.
type EventPublisher struct {
	writer messageWriter
	topic  string
	logger arbor.ILogger
	now    func() time.Time
}

var _ Notifier = (*EventPublisher)(nil)

// NewEventPublisher returns nil when no brokers are configured.
func NewEventPublisher(config *KafkaConfig, logger arbor.ILogger) *EventPublisher {
	if len(config.Brokers) == 0 {
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	logger.Info().Str("topic", config.Topic).Int("brokers", len(config.Brokers)).Msg("Kafka event publisher initialized")

	return &EventPublisher{
		writer: writer,
		topic:  config.Topic,
		logger: logger,
		now:    time.Now,
	}
}

func (p *EventPublisher) Notify(ctx context.Context, msg messages.Message) error {
	if p == nil {
		return nil
	}

	event, ok := p.eventFor(msg)
	if !ok {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.URL),
		Value: value,
		Time:  p.now(),
	})
	if err != nil {
		return WrapError(err, ErrorTypeNetwork, "kafka_write_failed", "failed to write analysis event to Kafka")
	}

	p.logger.Debug().Str("kind", string(event.Kind)).Str("id", event.ID).Msg("Published analysis event")
	return nil
}

func (p *EventPublisher) eventFor(msg messages.Message) (models.AnalysisEvent, bool) {
	event := models.AnalysisEvent{
		ID:        uuid.NewString(),
		Timestamp: p.now().UTC().Format(models.TimestampLayout),
	}

	switch m := msg.(type) {
	case messages.AnalysisComplete:
		event.Kind = models.EventAnalysisCompleted
		event.TabID = m.TabID
		event.URL = m.URL
		event.Score = m.Results.CredibilityScore
		event.Band = models.BandFor(m.Results.CredibilityScore)
		event.Claims = len(m.Results.Claims)
	case messages.AnalysisError:
		event.Kind = models.EventAnalysisFailed
		event.TabID = m.TabID
		event.Error = m.Error
	default:
		return event, false
	}
	return event, true
}

func (p *EventPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.logger.Info().Msg("Closing Kafka event publisher")
	return p.writer.Close()
}
