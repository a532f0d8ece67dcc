package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/internal/config"
	"github.com/temcen/recoengine/pkg/models"
)

const (
	DefaultRecommendationEventsTopic = "recommendation-events"

	eventTypeRecommendationServed = "recommendation_served"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher writes recommendation events to Kafka without blocking the
// request that produced them.
type EventPublisher struct {
	writer messageWriter
	topic  string
	logger *logrus.Logger
}

// NewEventPublisher returns nil when no brokers are configured.
func NewEventPublisher(cfg config.KafkaConfig, logger *logrus.Logger) *EventPublisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, recommendation events disabled")
		return nil
	}

	topic := cfg.Topics.RecommendationEvents
	if topic == "" {
		topic = DefaultRecommendationEventsTopic
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Key by user id so a user's events stay ordered
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.WithError(err).WithField("count", len(messages)).Error("Failed to deliver recommendation events")
			}
		},
	}

	return newEventPublisher(writer, topic, logger)
}

func newEventPublisher(writer messageWriter, topic string, logger *logrus.Logger) *EventPublisher {
	return &EventPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

func (p *EventPublisher) PublishRecommendationServed(ctx context.Context, event models.RecommendationServedEvent) error {
	message, err := p.buildMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"user_id":  event.UserID,
		"topic":    p.topic,
	}).Debug("Recommendation event published")

	return nil
}

func (p *EventPublisher) buildMessage(event models.RecommendationServedEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(eventTypeRecommendationServed)},
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "timestamp", Value: []byte(time.Unix(event.ServedAt, 0).UTC().Format(time.RFC3339))},
		},
	}, nil
}

func (p *EventPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close event publisher: %w", err)
	}
	return nil
}
