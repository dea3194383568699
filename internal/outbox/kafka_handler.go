package outbox

import (
	"context"
	"fmt"

	"github.com/bct-labs/material-tracking-api/internal/metrics"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/kafka"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// KafkaHandler publishes outbox messages to Kafka
type KafkaHandler struct {
	producer *kafka.Producer
	topic    string
	metrics  *metrics.Registry
	logger   logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer *kafka.Producer, topic string, metrics *metrics.Registry, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleMessage handles an outbox message by publishing it to Kafka
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	// The record key (lowercase supplier plus shipment index) keys the Kafka
	// message, so all events for one shipment land on the same partition.
	key := message.AggregateID

	h.logger.Info("Publishing message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	err := h.producer.SendMessage(ctx, h.topic, key, message.Payload)

	if err != nil {
		h.logger.Error("Failed to publish message to Kafka",
			"error", err,
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	if h.metrics != nil {
		h.metrics.EventsPublished.Inc()
	}

	h.logger.Info("Successfully published message to Kafka",
		"messageID", message.ID,
		"aggregateID", message.AggregateID)

	return nil
}
