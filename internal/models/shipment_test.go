package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShipmentStatusDisplay(t *testing.T) {
	tests := []struct {
		status ShipmentStatus
		want   string
	}{
		{ShipmentStatusPending, "PENDING"},
		{ShipmentStatusInTransit, "IN TRANSIT"},
		{ShipmentStatusDelivered, "DELIVERED"},
		{ShipmentStatus(3), "UNKNOWN"},
		{ShipmentStatus(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.Display())
	}
}

func TestTxRecordKeyIsLowercased(t *testing.T) {
	assert.Equal(t, "0xabcdef-4", TxRecordKey("0xABCdef", 4))
}

func TestNewShipmentTxRecord(t *testing.T) {
	record := NewShipmentTxRecord("0xSupplier", "0xContractor", 2, "0xhash")

	assert.Equal(t, "0xsupplier-2", record.RecordKey)
	assert.Equal(t, "0xSupplier", record.Supplier)
	assert.Equal(t, int64(2), record.ShipmentIndex)
	assert.Equal(t, "0xhash", record.TxHash)
	assert.False(t, record.RecordedAt.IsZero())
}

func TestShipmentEventsCarryRecordKey(t *testing.T) {
	record := NewShipmentTxRecord("0xSupplier", "0xContractor", 0, "0xhash")

	for _, newEvent := range []func(*ShipmentTxRecord) (*OutboxMessage, error){
		NewShipmentCreatedEvent,
		NewShipmentStartedEvent,
		NewShipmentCompletedEvent,
	} {
		msg, err := newEvent(record)

		require.NoError(t, err)
		assert.Equal(t, record.RecordKey, msg.AggregateID)
		assert.Equal(t, "shipment", msg.AggregateType)
		assert.Equal(t, OutboxStatusPending, msg.Status)
		assert.NotEmpty(t, msg.Payload)
	}
}

func TestShipmentEventTypes(t *testing.T) {
	created, err := NewShipmentCreatedEvent(NewShipmentTxRecord("0xs", "0xc", 0, "0xh"))
	require.NoError(t, err)
	assert.Equal(t, EventShipmentCreated, created.EventType)

	started, err := NewShipmentStartedEvent(NewShipmentTxRecord("0xs", "0xc", 0, "0xh"))
	require.NoError(t, err)
	assert.Equal(t, EventShipmentStarted, started.EventType)

	completed, err := NewShipmentCompletedEvent(NewShipmentTxRecord("0xs", "0xc", 0, "0xh"))
	require.NoError(t, err)
	assert.Equal(t, EventShipmentCompleted, completed.EventType)
}
