package consumer

import (
	"context"
	"encoding/json"
	"time"

	"mnemochat/internal/database/kafka"
	"mnemochat/internal/memory/service"
	"mnemochat/internal/models"
	"mnemochat/pkg/logger"
)

// KafkaConsumer consumes turn events from a Kafka topic and feeds them to
// the MemoryService. A message is committed only after it was processed;
// an unparseable message is committed and dropped so it cannot wedge the
// partition.
type KafkaConsumer struct {
	kafkaClient   *kafka.KafkaClient
	memoryService *service.MemoryService
	timeout       time.Duration
	logger        *logger.Logger
}

// NewKafkaConsumer creates a new KafkaConsumer. timeout bounds the
// processing of a single turn, extraction and embedding included.
func NewKafkaConsumer(kafkaClient *kafka.KafkaClient, memoryService *service.MemoryService, timeout time.Duration, log *logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		kafkaClient:   kafkaClient,
		memoryService: memoryService,
		timeout:       timeout,
		logger:        log,
	}
}

// Start runs the consume loop until the context is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.kafkaClient.Reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to fetch message")
				continue
			}

			var event models.TurnEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to unmarshal turn event, dropping message")
				if err := c.kafkaClient.Reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit message")
				}
				continue
			}

			procCtx, cancel := context.WithTimeout(ctx, c.timeout)
			err = c.memoryService.Remember(procCtx, &event)
			cancel()
			if err != nil {
				// Left uncommitted so the turn is retried on the next poll.
				c.logger.WithUser(event.UserID).WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to remember turn")
				continue
			}

			if err := c.kafkaClient.Reader.CommitMessages(ctx, msg); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit message")
			}
		}
	}()
}
