package pipeline

import (
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bct-labs/material-tracking-api/internal/models"
)

func testRecord(i int) *models.RawShipmentRecord {
	return &models.RawShipmentRecord{
		Supplier:     fmt.Sprintf("0xsupplier%02d", i),
		Contractor:   fmt.Sprintf("0xcontractor%02d", i),
		MaterialType: "Steel",
		Quantity:     new(big.Int).Mul(big.NewInt(int64(i+1)), models.FixedPointScale),
		Distance:     new(big.Int).Mul(big.NewInt(100), models.FixedPointScale),
		Price:        new(big.Int).Mul(big.NewInt(int64(i+1)), models.FixedPointScale),
		PickupTime:   1700000000 + int64(i)*3600,
		Status:       int(models.ShipmentStatusPending),
	}
}

func testRecords(n int) []*models.RawShipmentRecord {
	records := make([]*models.RawShipmentRecord, 0, n)

	for i := 0; i < n; i++ {
		records = append(records, testRecord(i))
	}

	return records
}

func TestApplyQueryDefaults(t *testing.T) {
	page, err := ApplyQuery(testRecords(3), QueryConfig{})

	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalMatching)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Len(t, page.Records, 3)

	// Default sort is pickup time, newest first
	assert.Equal(t, "0xsupplier02", page.Records[0].Supplier)
	assert.Equal(t, "0xsupplier00", page.Records[2].Supplier)
}

func TestApplyQueryStatusFilter(t *testing.T) {
	records := testRecords(4)
	records[1].Status = int(models.ShipmentStatusDelivered)
	records[3].Status = int(models.ShipmentStatusDelivered)

	status := models.ShipmentStatusDelivered
	page, err := ApplyQuery(records, QueryConfig{Status: &status})

	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalMatching)

	for _, r := range page.Records {
		assert.Equal(t, "DELIVERED", r.Status)
	}
}

func TestApplyQueryMaterialFilterIsCaseInsensitive(t *testing.T) {
	records := testRecords(3)
	records[1].MaterialType = "Reinforced STEEL beams"
	records[2].MaterialType = "Timber"

	page, err := ApplyQuery(records, QueryConfig{MaterialType: "steel"})

	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalMatching)
}

func TestApplyQueryAddressScope(t *testing.T) {
	records := testRecords(3)

	supplierOnly, err := ApplyQuery(records, QueryConfig{
		Address:      "supplier01",
		AddressScope: ScopeSupplier,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, supplierOnly.TotalMatching)

	contractorMiss, err := ApplyQuery(records, QueryConfig{
		Address:      "supplier01",
		AddressScope: ScopeContractor,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, contractorMiss.TotalMatching)

	both, err := ApplyQuery(records, QueryConfig{Address: "contractor02"})
	require.NoError(t, err)
	assert.Equal(t, 1, both.TotalMatching)
}

func TestApplyQueryPriceBounds(t *testing.T) {
	// Prices run 1..5 ether
	page, err := ApplyQuery(testRecords(5), QueryConfig{
		MinPrice: "2",
		MaxPrice: "4",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalMatching)
}

func TestApplyQuerySortByPriceAscending(t *testing.T) {
	page, err := ApplyQuery(testRecords(3), QueryConfig{
		SortBy:    SortByPrice,
		SortOrder: "asc",
	})

	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	assert.Equal(t, "1", page.Records[0].Price)
	assert.Equal(t, "2", page.Records[1].Price)
	assert.Equal(t, "3", page.Records[2].Price)
}

func TestApplyQueryStableSortKeepsFetchOrderOnTies(t *testing.T) {
	records := testRecords(4)

	for _, r := range records {
		r.Price = new(big.Int).Set(models.FixedPointScale)
	}

	asc, err := ApplyQuery(records, QueryConfig{SortBy: SortByPrice, SortOrder: "asc"})
	require.NoError(t, err)

	desc, err := ApplyQuery(records, QueryConfig{SortBy: SortByPrice, SortOrder: "desc"})
	require.NoError(t, err)

	// Every key is equal, so both orders must preserve fetch order
	for i := 0; i < 4; i++ {
		want := fmt.Sprintf("0xsupplier%02d", i)
		assert.Equal(t, want, asc.Records[i].Supplier)
		assert.Equal(t, want, desc.Records[i].Supplier)
	}
}

func TestApplyQueryPagination(t *testing.T) {
	records := testRecords(25)

	seen := make(map[string]bool)

	for pageNum := 1; pageNum <= 3; pageNum++ {
		page, err := ApplyQuery(records, QueryConfig{
			SortBy:    SortByPickupTime,
			SortOrder: "asc",
			Page:      pageNum,
		})

		require.NoError(t, err)
		assert.Equal(t, 25, page.TotalMatching)

		if pageNum < 3 {
			assert.Len(t, page.Records, 10)
		} else {
			assert.Len(t, page.Records, 5)
		}

		for _, r := range page.Records {
			assert.False(t, seen[r.Supplier], "record %s appeared on two pages", r.Supplier)
			seen[r.Supplier] = true
		}
	}

	assert.Len(t, seen, 25)
}

func TestApplyQueryPagePastEnd(t *testing.T) {
	page, err := ApplyQuery(testRecords(5), QueryConfig{Page: 4})

	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.NotNil(t, page.Records)
	assert.Equal(t, 5, page.TotalMatching)
	assert.Equal(t, 4, page.Page)
}

func TestApplyQueryHugePageNumber(t *testing.T) {
	page, err := ApplyQuery(testRecords(5), QueryConfig{Page: math.MaxInt, PageSize: 2})

	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 5, page.TotalMatching)
}

func TestApplyQueryIsIdempotent(t *testing.T) {
	records := testRecords(8)
	cfg := QueryConfig{SortBy: SortByQuantity, SortOrder: "desc", PageSize: 5}

	first, err := ApplyQuery(records, cfg)
	require.NoError(t, err)

	second, err := ApplyQuery(records, cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestApplyQueryRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  QueryConfig
	}{
		{"unknown sort field", QueryConfig{SortBy: "color"}},
		{"unknown sort order", QueryConfig{SortOrder: "sideways"}},
		{"unknown address scope", QueryConfig{AddressScope: "everyone"}},
		{"negative page", QueryConfig{Page: -1}},
		{"negative page size", QueryConfig{PageSize: -5}},
		{"bad min price", QueryConfig{MinPrice: "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyQuery(testRecords(1), tt.cfg)
			assert.Error(t, err)
		})
	}
}
