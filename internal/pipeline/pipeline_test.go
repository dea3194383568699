package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// mockReader serves shipments out of an in-memory per-supplier map.
type mockReader struct {
	mu        sync.Mutex
	shipments map[string][]*models.RawShipmentRecord
	failIndex int64
	calls     int
}

func newMockReader(supplier string, records []*models.RawShipmentRecord) *mockReader {
	return &mockReader{
		shipments: map[string][]*models.RawShipmentRecord{supplier: records},
		failIndex: -1,
	}
}

func (m *mockReader) GetShipment(ctx context.Context, supplier string, index int64) (*models.RawShipmentRecord, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if index == m.failIndex {
		return nil, fmt.Errorf("record %d is corrupt", index)
	}

	records := m.shipments[supplier]

	if index < 0 || index >= int64(len(records)) {
		return nil, errors.NewFetchFailedError(fmt.Sprintf("no shipment at index %d", index))
	}

	return records[index], nil
}

func (m *mockReader) GetShipmentCount(ctx context.Context, supplier string) (int64, error) {
	return int64(len(m.shipments[supplier])), nil
}

func (m *mockReader) GetAllShipments(ctx context.Context) ([]*models.RawShipmentRecord, error) {
	var all []*models.RawShipmentRecord

	for _, records := range m.shipments {
		all = append(all, records...)
	}

	return all, nil
}

func testPipeline() *Pipeline {
	return New(logger.NewLogger("error"), nil)
}

func TestQueryNilSourceIsSourceUnavailable(t *testing.T) {
	_, err := testPipeline().Query(context.Background(), nil, GlobalScope(), QueryConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
}

func TestQueryEmptySupplierScopeIsRejected(t *testing.T) {
	source := newMockReader("0xsupplier", testRecords(3))

	_, err := testPipeline().Query(context.Background(), source, SupplierScope(""), QueryConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Zero(t, source.calls)
}

func TestQuerySupplierScopePreservesLedgerOrder(t *testing.T) {
	records := testRecords(20)
	source := newMockReader("0xsupplier", records)

	page, err := testPipeline().Query(context.Background(), source, SupplierScope("0xsupplier"), QueryConfig{
		SortBy:    SortByPickupTime,
		SortOrder: "asc",
		PageSize:  20,
	})

	require.NoError(t, err)
	require.Len(t, page.Records, 20)

	// Pickup times rise with the index, so ascending order mirrors
	// ledger insertion order even though fetches ran concurrently.
	for i, r := range page.Records {
		assert.Equal(t, fmt.Sprintf("0xsupplier%02d", i), r.Supplier)
	}
}

func TestQueryFailedFetchFailsWholeBatch(t *testing.T) {
	source := newMockReader("0xsupplier", testRecords(10))
	source.failIndex = 7

	_, err := testPipeline().Query(context.Background(), source, SupplierScope("0xsupplier"), QueryConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFetchFailed)
}

func TestQueryGlobalScopeUsesAllShipments(t *testing.T) {
	source := newMockReader("0xsupplier", testRecords(5))

	page, err := testPipeline().Query(context.Background(), source, GlobalScope(), QueryConfig{})

	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalMatching)
	// Global scope reads the transaction list, not per-index records
	assert.Zero(t, source.calls)
}

func TestFetchOne(t *testing.T) {
	source := newMockReader("0xsupplier", testRecords(3))

	record, err := testPipeline().FetchOne(context.Background(), source, "0xsupplier", 1)

	require.NoError(t, err)
	assert.Equal(t, "0xsupplier01", record.Supplier)
	assert.Equal(t, "PENDING", record.Status)
}

func TestFetchOneMissingIndex(t *testing.T) {
	source := newMockReader("0xsupplier", testRecords(3))

	_, err := testPipeline().FetchOne(context.Background(), source, "0xsupplier", 9)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFetchFailed)
}
