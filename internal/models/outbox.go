package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Shipment event types published through the outbox.
const (
	EventShipmentCreated   = "shipment_created"
	EventShipmentStarted   = "shipment_started"
	EventShipmentCompleted = "shipment_completed"
)

// OutboxMessage represents a message to be published from the outbox table
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope serialized into an outbox payload.
type OutboxMessageEvent struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

// newShipmentEvent wraps a tx record into an outbox message of the given
// event type, keyed by the record key so events for one shipment stay ordered
// on a single Kafka partition.
func newShipmentEvent(eventType string, record *ShipmentTxRecord) (*OutboxMessage, error) {
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: record.RecordKey,
		OccurredAt:  time.Now().UTC(),
		Data:        record,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		EventType:     eventType,
		Payload:       payload,
		AggregateType: "shipment",
		AggregateID:   record.RecordKey,
		CreatedAt:     time.Now().UTC(),
		Status:        OutboxStatusPending,
	}, nil
}

// NewShipmentCreatedEvent creates the event for a new shipment on the ledger.
func NewShipmentCreatedEvent(record *ShipmentTxRecord) (*OutboxMessage, error) {
	return newShipmentEvent(EventShipmentCreated, record)
}

// NewShipmentStartedEvent creates the event for a shipment moving in transit.
func NewShipmentStartedEvent(record *ShipmentTxRecord) (*OutboxMessage, error) {
	return newShipmentEvent(EventShipmentStarted, record)
}

// NewShipmentCompletedEvent creates the event for a delivered shipment.
func NewShipmentCompletedEvent(record *ShipmentTxRecord) (*OutboxMessage, error) {
	return newShipmentEvent(EventShipmentCompleted, record)
}
