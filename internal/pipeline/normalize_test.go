package pipeline

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bct-labs/material-tracking-api/internal/models"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)

	if !ok {
		panic("bad test constant " + s)
	}

	return v
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name string
		in   *big.Int
		want string
	}{
		{"nil is zero", nil, "0"},
		{"zero", big.NewInt(0), "0"},
		{"whole value", wei("5000000000000000000"), "5"},
		{"ten", wei("10000000000000000000"), "10"},
		{"one", wei("1000000000000000000"), "1"},
		{"fraction trims trailing zeros", wei("1500000000000000000"), "1.5"},
		{"smallest unit", big.NewInt(1), "0.000000000000000001"},
		{"sub one", wei("250000000000000000"), "0.25"},
		{"negative", wei("-2500000000000000000"), "-2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUnits(tt.in))
		})
	}
}

func TestParseUnitsRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "5", "1.5", "0.25", "-2.5", "0.000000000000000001"} {
		v, err := ParseUnits(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, FormatUnits(v), s)
	}
}

func TestParseUnitsRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "abc", "1.2.3", "1.0000000000000000001", "-", ".", "-.", "+5", "1.+2", "--1"} {
		_, err := ParseUnits(s)
		assert.Error(t, err, s)
	}
}

func TestNormalizePendingShipment(t *testing.T) {
	raw := &models.RawShipmentRecord{
		Supplier:     "0xSupplier",
		Contractor:   "0xContractor",
		MaterialType: "Steel",
		Quantity:     wei("5000000000000000000"),
		PickupTime:   1700000000,
		DeliveryTime: 0,
		Distance:     wei("10000000000000000000"),
		Price:        wei("1000000000000000000"),
		Status:       int(models.ShipmentStatusPending),
		IsPaid:       false,
	}

	got := Normalize(raw)

	assert.Equal(t, "5", got.Quantity)
	assert.Equal(t, "10", got.Distance)
	assert.Equal(t, "1", got.Price)
	assert.Equal(t, "PENDING", got.Status)
	assert.Equal(t, NotPaidText, got.IsPaid)
	assert.Equal(t, NotDelivered, got.DeliveryTime)
	assert.NotEqual(t, TimeUnset, got.PickupTime)
}

func TestNormalizeZeroTimestampsNeverRenderEpoch(t *testing.T) {
	raw := &models.RawShipmentRecord{
		Status: int(models.ShipmentStatusDelivered),
		IsPaid: true,
	}

	got := Normalize(raw)

	assert.Equal(t, TimeUnset, got.PickupTime)
	assert.Equal(t, NotDelivered, got.DeliveryTime)
	assert.Equal(t, PaidText, got.IsPaid)
	assert.NotContains(t, got.PickupTime, "1970")
}

func TestNormalizeUnknownStatus(t *testing.T) {
	raw := &models.RawShipmentRecord{Status: 7}

	assert.Equal(t, "UNKNOWN", Normalize(raw).Status)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := &models.RawShipmentRecord{
		Supplier:     "0xabc",
		MaterialType: "Timber",
		Quantity:     wei("1500000000000000000"),
		Price:        wei("2000000000000000000"),
		PickupTime:   1690000000,
		DeliveryTime: 1690086400,
		Status:       int(models.ShipmentStatusInTransit),
	}

	first := Normalize(raw)
	second := Normalize(raw)

	assert.Equal(t, first, second)
	assert.Equal(t, "IN TRANSIT", first.Status)
}
