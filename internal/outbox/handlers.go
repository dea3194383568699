package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// LoggingHandler logs shipment events instead of publishing them. Useful
// when Kafka is not configured.
type LoggingHandler struct {
	logger logger.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger logger.Logger) *LoggingHandler {
	return &LoggingHandler{
		logger: logger,
	}
}

// HandleMessage handles the outbox message by logging it
func (h *LoggingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal outbox message: %w", err)
	}

	h.logger.Info("Handling shipment event",
		"messageID", message.ID,
		"eventType", message.EventType,
		"aggregateID", message.AggregateID,
		"eventID", event.EventID,
		"occurredAt", event.OccurredAt)

	return nil
}
