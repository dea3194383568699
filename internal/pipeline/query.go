package pipeline

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
)

// SortField names a sortable shipment attribute.
type SortField string

const (
	SortByPickupTime   SortField = "pickup_time"
	SortByDeliveryTime SortField = "delivery_time"
	SortByPrice        SortField = "price"
	SortByQuantity     SortField = "quantity"
	SortByStatus       SortField = "status"
	SortByMaterialType SortField = "material_type"
)

// AddressScope selects which address fields an address filter matches.
type AddressScope string

const (
	ScopeSupplier   AddressScope = "supplier"
	ScopeContractor AddressScope = "contractor"
	ScopeBoth       AddressScope = "both"
)

// QueryConfig is the declarative filter/sort/page transform applied to the
// fetched records. All filters are conjunctive; substring matches are
// case-insensitive. Min/max price are decimal ether strings, compared on the
// underlying wei integers so no precision is lost.
type QueryConfig struct {
	Status       *models.ShipmentStatus `json:"status,omitempty"`
	MaterialType string                 `json:"material_type,omitempty"`
	Address      string                 `json:"address,omitempty"`
	AddressScope AddressScope           `json:"address_scope,omitempty"`
	MinPrice     string                 `json:"min_price,omitempty"`
	MaxPrice     string                 `json:"max_price,omitempty"`
	SortBy       SortField              `json:"sort_by,omitempty"`
	SortOrder    string                 `json:"sort_order,omitempty"`
	Page         int                    `json:"page,omitempty"`
	PageSize     int                    `json:"page_size,omitempty"`
}

// Page is one page of display records. TotalMatching counts every record
// that passed the filters, before pagination, so callers can compute the
// page count.
type Page struct {
	Records       []models.DisplayShipmentRecord `json:"records"`
	TotalMatching int                            `json:"total_matching"`
	Page          int                            `json:"page"`
	PageSize      int                            `json:"page_size"`
}

// entry pairs a raw record with its display projection. Filters and sorts
// compare raw values; the page carries the display form.
type entry struct {
	raw     *models.RawShipmentRecord
	display models.DisplayShipmentRecord
}

// normalizedConfig is a QueryConfig with defaults applied and price bounds
// parsed to wei.
type normalizedConfig struct {
	QueryConfig
	minWei *big.Int
	maxWei *big.Int
}

// withDefaults validates the config and fills defaults: sort by pickup time
// descending, first page, ten records per page, both address fields.
func withDefaults(cfg QueryConfig) (*normalizedConfig, error) {
	out := &normalizedConfig{QueryConfig: cfg}

	if out.SortBy == "" {
		out.SortBy = SortByPickupTime
	}

	switch out.SortBy {
	case SortByPickupTime, SortByDeliveryTime, SortByPrice, SortByQuantity, SortByStatus, SortByMaterialType:
	default:
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown sort field %q", out.SortBy))
	}

	if out.SortOrder == "" {
		out.SortOrder = "desc"
	}

	if out.SortOrder != "asc" && out.SortOrder != "desc" {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown sort order %q", out.SortOrder))
	}

	if out.AddressScope == "" {
		out.AddressScope = ScopeBoth
	}

	switch out.AddressScope {
	case ScopeSupplier, ScopeContractor, ScopeBoth:
	default:
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown address scope %q", out.AddressScope))
	}

	if out.Page == 0 {
		out.Page = 1
	}

	if out.Page < 1 {
		return nil, errors.NewInvalidInputError("page must be a positive integer")
	}

	if out.PageSize == 0 {
		out.PageSize = 10
	}

	if out.PageSize < 1 {
		return nil, errors.NewInvalidInputError("page size must be a positive integer")
	}

	if cfg.MinPrice != "" {
		wei, err := ParseUnits(cfg.MinPrice)

		if err != nil {
			return nil, err
		}

		out.minWei = wei
	}

	if cfg.MaxPrice != "" {
		wei, err := ParseUnits(cfg.MaxPrice)

		if err != nil {
			return nil, err
		}

		out.maxWei = wei
	}

	return out, nil
}

// ApplyQuery normalizes, filters, sorts and paginates the fetched records.
// The transform is read-only and idempotent; it never touches the ledger.
func ApplyQuery(records []*models.RawShipmentRecord, cfg QueryConfig) (*Page, error) {
	nc, err := withDefaults(cfg)

	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(records))

	for _, raw := range records {
		if !nc.matches(raw) {
			continue
		}

		entries = append(entries, entry{raw: raw, display: Normalize(raw)})
	}

	sortEntries(entries, nc)

	return paginate(entries, nc), nil
}

// matches applies every supplied predicate; all must pass.
func (nc *normalizedConfig) matches(raw *models.RawShipmentRecord) bool {
	if nc.Status != nil && raw.Status != int(*nc.Status) {
		return false
	}

	if nc.MaterialType != "" &&
		!strings.Contains(strings.ToLower(raw.MaterialType), strings.ToLower(nc.MaterialType)) {
		return false
	}

	if nc.Address != "" && !nc.matchesAddress(raw) {
		return false
	}

	if nc.minWei != nil && raw.Price.Cmp(nc.minWei) < 0 {
		return false
	}

	if nc.maxWei != nil && raw.Price.Cmp(nc.maxWei) > 0 {
		return false
	}

	return true
}

func (nc *normalizedConfig) matchesAddress(raw *models.RawShipmentRecord) bool {
	needle := strings.ToLower(nc.Address)

	supplier := strings.Contains(strings.ToLower(raw.Supplier), needle)
	contractor := strings.Contains(strings.ToLower(raw.Contractor), needle)

	switch nc.AddressScope {
	case ScopeSupplier:
		return supplier
	case ScopeContractor:
		return contractor
	default:
		return supplier || contractor
	}
}

// sortEntries orders entries by the sort key. Numeric fields compare on the
// raw integers, never on descaled strings; material type uses locale-aware
// collation. The sort is stable, so equal keys keep fetch order.
func sortEntries(entries []entry, nc *normalizedConfig) {
	var less func(a, b *models.RawShipmentRecord) bool

	switch nc.SortBy {
	case SortByPickupTime:
		less = func(a, b *models.RawShipmentRecord) bool { return a.PickupTime < b.PickupTime }
	case SortByDeliveryTime:
		less = func(a, b *models.RawShipmentRecord) bool { return a.DeliveryTime < b.DeliveryTime }
	case SortByPrice:
		less = func(a, b *models.RawShipmentRecord) bool { return a.Price.Cmp(b.Price) < 0 }
	case SortByQuantity:
		less = func(a, b *models.RawShipmentRecord) bool { return a.Quantity.Cmp(b.Quantity) < 0 }
	case SortByStatus:
		less = func(a, b *models.RawShipmentRecord) bool { return a.Status < b.Status }
	case SortByMaterialType:
		collator := collate.New(language.English, collate.IgnoreCase)
		less = func(a, b *models.RawShipmentRecord) bool {
			return collator.CompareString(a.MaterialType, b.MaterialType) < 0
		}
	}

	descending := nc.SortOrder == "desc"

	sort.SliceStable(entries, func(i, j int) bool {
		if descending {
			return less(entries[j].raw, entries[i].raw)
		}
		return less(entries[i].raw, entries[j].raw)
	})
}

// paginate slices one page out of the filtered entries. Pages are
// one-indexed; a page past the end returns an empty record list with
// TotalMatching intact. The last-page bound is checked before any index
// arithmetic so an arbitrarily large page number cannot overflow.
func paginate(entries []entry, nc *normalizedConfig) *Page {
	page := &Page{
		Records:       []models.DisplayShipmentRecord{},
		TotalMatching: len(entries),
		Page:          nc.Page,
		PageSize:      nc.PageSize,
	}

	lastPage := (len(entries) + nc.PageSize - 1) / nc.PageSize

	if nc.Page > lastPage {
		return page
	}

	start := (nc.Page - 1) * nc.PageSize
	end := start + nc.PageSize

	if end > len(entries) {
		end = len(entries)
	}

	for _, e := range entries[start:end] {
		page.Records = append(page.Records, e.display)
	}

	return page
}
