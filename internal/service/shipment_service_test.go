package service

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bct-labs/material-tracking-api/internal/ledger"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/internal/pipeline"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// mockLedgerClient is a hand-written ledger fake. Read calls serve canned
// records; write calls record the request and return a fixed transaction.
type mockLedgerClient struct {
	records   []*models.RawShipmentRecord
	readErr   error
	writeErr  error
	lastWrite string
}

func (m *mockLedgerClient) GetShipment(ctx context.Context, supplier string, index int64) (*models.RawShipmentRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}

	if index < 0 || index >= int64(len(m.records)) {
		return nil, errors.NewFetchFailedError(fmt.Sprintf("no shipment at index %d", index))
	}

	return m.records[index], nil
}

func (m *mockLedgerClient) GetShipmentCount(ctx context.Context, supplier string) (int64, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}

	return int64(len(m.records)), nil
}

func (m *mockLedgerClient) GetAllShipments(ctx context.Context) ([]*models.RawShipmentRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}

	return m.records, nil
}

func (m *mockLedgerClient) CreateShipment(ctx context.Context, req *ledger.CreateShipmentRequest) (*ledger.TxResult, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}

	m.lastWrite = "create"

	return &ledger.TxResult{TxHash: "0xhash", Supplier: "0xsupplier", ShipmentIndex: int64(len(m.records))}, nil
}

func (m *mockLedgerClient) StartShipment(ctx context.Context, supplier, contractor string, index int64) (*ledger.TxResult, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}

	m.lastWrite = "start"

	return &ledger.TxResult{TxHash: "0xhash", Supplier: supplier, ShipmentIndex: index}, nil
}

func (m *mockLedgerClient) CompleteShipment(ctx context.Context, supplier, contractor string, index int64) (*ledger.TxResult, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}

	m.lastWrite = "complete"

	return &ledger.TxResult{TxHash: "0xhash", Supplier: supplier, ShipmentIndex: index}, nil
}

func testService(client ledger.Client) *ShipmentService {
	l := logger.NewLogger("error")

	return NewShipmentService(client, pipeline.New(l, nil), nil, nil, nil, l)
}

func rawRecord(i int) *models.RawShipmentRecord {
	return &models.RawShipmentRecord{
		Supplier:     "0xsupplier",
		Contractor:   "0xcontractor",
		MaterialType: "Steel",
		Quantity:     new(big.Int).Mul(big.NewInt(int64(i+1)), models.FixedPointScale),
		Distance:     big.NewInt(0),
		Price:        new(big.Int).Mul(big.NewInt(int64(i+1)), models.FixedPointScale),
		PickupTime:   1700000000 + int64(i),
		Status:       int(models.ShipmentStatusPending),
	}
}

func TestServiceQuery(t *testing.T) {
	client := &mockLedgerClient{records: []*models.RawShipmentRecord{rawRecord(0), rawRecord(1)}}
	svc := testService(client)

	page, err := svc.Query(context.Background(), pipeline.SupplierScope("0xsupplier"), pipeline.QueryConfig{})

	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalMatching)
}

func TestServiceQueryPropagatesLedgerErrors(t *testing.T) {
	client := &mockLedgerClient{readErr: errors.NewSourceUnavailableError("gateway down")}
	svc := testService(client)

	_, err := svc.Query(context.Background(), pipeline.GlobalScope(), pipeline.QueryConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
}

func TestServiceGetShipment(t *testing.T) {
	client := &mockLedgerClient{records: []*models.RawShipmentRecord{rawRecord(0)}}
	svc := testService(client)

	record, err := svc.GetShipment(context.Background(), "0xsupplier", 0)

	require.NoError(t, err)
	assert.Equal(t, "1", record.Quantity)
	assert.Equal(t, "PENDING", record.Status)
}

func TestServiceGetShipmentCount(t *testing.T) {
	client := &mockLedgerClient{records: []*models.RawShipmentRecord{rawRecord(0), rawRecord(1), rawRecord(2)}}
	svc := testService(client)

	count, err := svc.GetShipmentCount(context.Background(), "0xsupplier")

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestServiceWriteFailureDoesNotRecord(t *testing.T) {
	client := &mockLedgerClient{writeErr: errors.NewTemporaryError("gateway unreachable")}
	svc := testService(client)

	_, err := svc.StartShipment(context.Background(), "0xsupplier", "0xcontractor", 0)

	require.Error(t, err)
	assert.Empty(t, client.lastWrite)
}
