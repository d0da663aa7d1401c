package kafka

import (
	"context"
	"encoding/json"
	"errors"

	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/domain"
)

// Consume reads sync events from topic until ctx is cancelled. Undecodable
// messages are logged and skipped.
func Consume(ctx context.Context, brokers []string, topic, groupID string, logger *zap.Logger, handle func(domain.SyncEvent) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("error reading sync event", zap.String("topic", topic), zap.Error(err))
			continue
		}

		event, err := decode(msg)
		if err != nil {
			logger.Warn("skipping undecodable sync event", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if err := handle(event); err != nil {
			return err
		}
	}
}

func decode(msg kafkaGo.Message) (domain.SyncEvent, error) {
	var event domain.SyncEvent
	err := json.Unmarshal(msg.Value, &event)
	return event, err
}
