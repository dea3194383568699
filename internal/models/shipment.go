package models

import (
	"math/big"
)

// FixedPointScale is the scaling factor the ledger applies to quantity and
// distance values: the true value is the stored integer divided by 10^18.
var FixedPointScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ShipmentStatus is the ledger's status enumeration for a shipment.
type ShipmentStatus int

const (
	ShipmentStatusPending   ShipmentStatus = 0
	ShipmentStatusInTransit ShipmentStatus = 1
	ShipmentStatusDelivered ShipmentStatus = 2
)

// Display returns the display text for the status. Codes the ledger may add
// in the future render as UNKNOWN instead of failing.
func (s ShipmentStatus) Display() string {
	switch s {
	case ShipmentStatusPending:
		return "PENDING"
	case ShipmentStatusInTransit:
		return "IN TRANSIT"
	case ShipmentStatusDelivered:
		return "DELIVERED"
	default:
		return "UNKNOWN"
	}
}

// RawShipmentRecord is a shipment exactly as the ledger returns it: addresses
// as hex strings, quantity/distance as fixed-point integers scaled by 10^18,
// price in wei, timestamps in unix seconds with zero meaning unset.
type RawShipmentRecord struct {
	Supplier     string   `json:"supplier"`
	Contractor   string   `json:"contractor"`
	MaterialType string   `json:"material_type"`
	Quantity     *big.Int `json:"quantity"`
	PickupTime   int64    `json:"pickup_time"`
	DeliveryTime int64    `json:"delivery_time"`
	Distance     *big.Int `json:"distance"`
	Price        *big.Int `json:"price"`
	Status       int      `json:"status"`
	IsPaid       bool     `json:"is_paid"`
}

// DisplayShipmentRecord is the display-ready projection of a raw record. All
// fields are strings so the UI layer can render them verbatim.
type DisplayShipmentRecord struct {
	Supplier     string `json:"supplier"`
	Contractor   string `json:"contractor"`
	MaterialType string `json:"material_type"`
	Quantity     string `json:"quantity"`
	PickupTime   string `json:"pickup_time"`
	DeliveryTime string `json:"delivery_time"`
	Distance     string `json:"distance"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	IsPaid       string `json:"is_paid"`
}
