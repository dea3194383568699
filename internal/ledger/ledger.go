package ledger

import (
	"context"
	"math/big"

	"github.com/bct-labs/material-tracking-api/internal/models"
)

// Reader is the read-only query surface of the material-tracking contract.
// Per-supplier shipments live in an indexed array on the ledger; the global
// view returns every shipment across suppliers in ledger-defined order. None
// of these calls change chain state.
type Reader interface {
	// GetShipment returns the shipment at the given index of the supplier's array.
	GetShipment(ctx context.Context, supplier string, index int64) (*models.RawShipmentRecord, error)
	// GetShipmentCount returns the length of the supplier's shipment array.
	GetShipmentCount(ctx context.Context, supplier string) (int64, error)
	// GetAllShipments returns every shipment on the ledger.
	GetAllShipments(ctx context.Context) ([]*models.RawShipmentRecord, error)
}

// Writer is the state-changing surface of the contract. Every call submits a
// transaction and blocks until it is mined, returning the transaction hash.
type Writer interface {
	CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*TxResult, error)
	StartShipment(ctx context.Context, supplier, contractor string, index int64) (*TxResult, error)
	CompleteShipment(ctx context.Context, supplier, contractor string, index int64) (*TxResult, error)
}

// Client combines the full contract surface.
type Client interface {
	Reader
	Writer
}

// CreateShipmentRequest carries the arguments of the contract's create call.
// Quantity and Distance are fixed-point integers scaled by 10^18, PriceWei is
// the escrowed payment in wei.
type CreateShipmentRequest struct {
	Contractor   string   `json:"contractor"`
	MaterialType string   `json:"material_type"`
	Quantity     *big.Int `json:"quantity"`
	PickupTime   int64    `json:"pickup_time"`
	Distance     *big.Int `json:"distance"`
	PriceWei     *big.Int `json:"price"`
}

// TxResult is the outcome of a mined ledger write.
type TxResult struct {
	TxHash        string `json:"tx_hash"`
	Supplier      string `json:"supplier"`
	ShipmentIndex int64  `json:"shipment_index"`
}
