package ledger

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bct-labs/material-tracking-api/internal/config"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

func testClient(t *testing.T, handler http.Handler) (*GatewayClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewGatewayClient(config.LedgerConfig{
		GatewayURL:      server.URL,
		ChainID:         11155111,
		ContractAddress: "0xcontract",
	}, logger.NewLogger("error"))

	return client, server
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func TestGetShipmentDecodesFixedPointFields(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/contracts/0xcontract/suppliers/0xsupplier/shipments/2", r.URL.Path)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"supplier":      "0xsupplier",
			"contractor":    "0xcontractor",
			"material_type": "Steel",
			"quantity":      "5000000000000000000",
			"pickup_time":   1700000000,
			"delivery_time": 0,
			"distance":      "10000000000000000000",
			"price":         "1000000000000000000",
			"status":        0,
			"is_paid":       false,
		})
	}))

	record, err := client.GetShipment(context.Background(), "0xsupplier", 2)

	require.NoError(t, err)
	assert.Equal(t, "0xsupplier", record.Supplier)
	assert.Equal(t, 0, big.NewInt(0).Mul(big.NewInt(5), big.NewInt(1e18)).Cmp(record.Quantity))
	assert.Equal(t, int64(0), record.DeliveryTime)
}

func TestGetShipmentBadEncodingIsNormalizationError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"supplier": "0xsupplier",
			"quantity": "0x1f",
			"distance": "0",
			"price":    "0",
		})
	}))

	_, err := client.GetShipment(context.Background(), "0xsupplier", 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNormalization)
}

func TestGetShipmentRevertIsFetchFailedAndNotRetried(t *testing.T) {
	var calls int32

	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "execution reverted: index out of bounds"})
	}))

	_, err := client.GetShipment(context.Background(), "0xsupplier", 99)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFetchFailed)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetShipmentCount(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/contracts/0xcontract/suppliers/0xsupplier/shipments/count", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]int64{"count": 12})
	}))

	count, err := client.GetShipmentCount(context.Background(), "0xsupplier")

	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}

func TestGetAllShipmentsPreservesOrder(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"shipments": []map[string]interface{}{
				{"supplier": "0xa", "quantity": "1", "distance": "1", "price": "1"},
				{"supplier": "0xb", "quantity": "2", "distance": "2", "price": "2"},
			},
		})
	}))

	records, err := client.GetAllShipments(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0xa", records[0].Supplier)
	assert.Equal(t, "0xb", records[1].Supplier)
}

func TestVerifyChainMismatch(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"chain_id": 1})
	}))

	err := client.VerifyChain(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 11155111")
}

func TestCreateShipmentSubmitsScaledValues(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5000000000000000000", body["quantity"])
		assert.Equal(t, "Steel", body["material_type"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tx_hash":        "0xdeadbeef",
			"supplier":       "0xsupplier",
			"shipment_index": 3,
		})
	}))

	result, err := client.CreateShipment(context.Background(), &CreateShipmentRequest{
		Contractor:   "0xcontractor",
		MaterialType: "Steel",
		Quantity:     new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18)),
		PickupTime:   1700000000,
		Distance:     big.NewInt(0),
		PriceWei:     big.NewInt(0),
	})

	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", result.TxHash)
	assert.Equal(t, int64(3), result.ShipmentIndex)
}

func TestWritesAreNeverRetried(t *testing.T) {
	var calls int32

	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.StartShipment(context.Background(), "0xsupplier", "0xcontractor", 0)

	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
