package models

import (
	"fmt"
	"strings"
	"time"
)

// ShipmentTxRecord is the auxiliary record kept alongside the ledger: the
// transaction hash of a ledger write, keyed by supplier address and shipment
// index. The query pipeline never writes these; only the write path does.
type ShipmentTxRecord struct {
	ID            string    `db:"id" json:"id"`
	RecordKey     string    `db:"record_key" json:"record_key"`
	Supplier      string    `db:"supplier" json:"supplier"`
	Contractor    string    `db:"contractor" json:"contractor"`
	ShipmentIndex int64     `db:"shipment_index" json:"shipment_index"`
	TxHash        string    `db:"tx_hash" json:"tx_hash"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

// TxRecordKey builds the store key for a supplier/index pair. Addresses are
// lowercased so checksummed and plain hex forms collide on purpose.
func TxRecordKey(supplier string, index int64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(supplier), index)
}

// NewShipmentTxRecord creates a tx record for a completed ledger write.
func NewShipmentTxRecord(supplier, contractor string, index int64, txHash string) *ShipmentTxRecord {
	return &ShipmentTxRecord{
		ID:            GenerateID("txr"),
		RecordKey:     TxRecordKey(supplier, index),
		Supplier:      supplier,
		Contractor:    contractor,
		ShipmentIndex: index,
		TxHash:        txHash,
		RecordedAt:    GetCurrentTime(),
	}
}
