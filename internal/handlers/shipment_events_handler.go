package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// ShipmentEventsHandler handles shipment events from Kafka
type ShipmentEventsHandler struct {
	logger logger.Logger
}

// NewShipmentEventsHandler creates a new ShipmentEventsHandler
func NewShipmentEventsHandler(logger logger.Logger) *ShipmentEventsHandler {
	return &ShipmentEventsHandler{
		logger: logger,
	}
}

// HandleMessage handles incoming shipment events from Kafka messages
func (h *ShipmentEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal message", "error", err)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	h.logger.Info("Handling shipment event",
		"eventType", event.EventType,
		"eventId", event.EventID,
		"aggregateId", event.AggregateID,
		"occurredAt", event.OccurredAt,
	)

	switch event.EventType {
	case models.EventShipmentCreated:
		return h.handleShipmentCreated(event)
	case models.EventShipmentStarted:
		return h.handleShipmentStarted(event)
	case models.EventShipmentCompleted:
		return h.handleShipmentCompleted(event)
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType)
		return nil
	}
}

// handleShipmentCreated handles the shipment_created event
func (h *ShipmentEventsHandler) handleShipmentCreated(event models.OutboxMessageEvent) error {
	h.logger.Info("Processing shipment created event",
		"recordKey", event.AggregateID,
		"eventID", event.EventID,
	)

	// Downstream consumers would notify the contractor and schedule pickup here.

	return nil
}

// handleShipmentStarted handles the shipment_started event
func (h *ShipmentEventsHandler) handleShipmentStarted(event models.OutboxMessageEvent) error {
	h.logger.Info("Processing shipment started event",
		"recordKey", event.AggregateID,
		"eventID", event.EventID)

	return nil
}

// handleShipmentCompleted handles the shipment_completed event
func (h *ShipmentEventsHandler) handleShipmentCompleted(event models.OutboxMessageEvent) error {
	h.logger.Info("Processing shipment completed event",
		"recordKey", event.AggregateID,
		"eventID", event.EventID)

	data, ok := event.Data.(map[string]interface{})

	if !ok {
		h.logger.Error("Invalid event data format", "eventID", event.EventID)
		return fmt.Errorf("invalid event data format")
	}

	txHash, _ := data["tx_hash"].(string)

	h.logger.Info("Shipment delivered and escrow released",
		"recordKey", event.AggregateID,
		"txHash", txHash)

	return nil
}
