package publisher

import (
	"context"
	"encoding/json"

	"mnemochat/internal/models"
	"mnemochat/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// TurnPublisher publishes finished conversation turns to Kafka for the
// memory service to consume.
type TurnPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewTurnPublisher creates a new TurnPublisher on an existing writer.
func NewTurnPublisher(writer *kafka.Writer, log *logger.Logger) *TurnPublisher {
	return &TurnPublisher{
		writer: writer,
		logger: log,
	}
}

// Publish sends a turn event keyed by user ID, so one user's turns stay
// ordered within a partition.
func (p *TurnPublisher) Publish(ctx context.Context, event *models.TurnEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to marshal turn event for Kafka")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"topic": p.writer.Topic}).Error("Failed to write turn event to Kafka")
		return err
	}
	return nil
}
