package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/usecase"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// Publisher ships sync events to a Kafka topic, keyed by campaign id so the
// events of one campaign stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewPublisher creates an asynchronous writer. Delivery failures are logged
// and never block the engine.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("kafka")
	w := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkaGo.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafkaGo.Message, err error) {
			if err != nil {
				logger.Warn("failed to deliver sync events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	return newPublisher(w, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event domain.SyncEvent) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Kind, p.topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func encode(event domain.SyncEvent) (kafkaGo.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafkaGo.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	key := event.CampaignID
	if key == "" {
		key = event.ID
	}
	return kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.CreatedAt,
		Headers: []kafkaGo.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}, nil
}

var _ usecase.EventSink = (*Publisher)(nil)
