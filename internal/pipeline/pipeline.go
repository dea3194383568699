package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bct-labs/material-tracking-api/internal/ledger"
	"github.com/bct-labs/material-tracking-api/internal/metrics"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// maxConcurrentFetches bounds the per-index fan-out so a supplier with a
// long shipment history does not flood the gateway.
const maxConcurrentFetches = 8

// Scope selects what to fetch: a single supplier's shipment array or the
// ledger-wide transaction list.
type Scope struct {
	Supplier string
	global   bool
}

// SupplierScope scopes a query to one supplier's shipments. The address
// must be non-empty; an empty address is rejected at fetch time rather
// than widened to a ledger-wide read.
func SupplierScope(address string) Scope {
	return Scope{Supplier: address}
}

// GlobalScope scopes a query to every shipment on the ledger.
func GlobalScope() Scope {
	return Scope{global: true}
}

// IsGlobal reports whether the scope covers the whole ledger.
func (s Scope) IsGlobal() bool {
	return s.global
}

// Pipeline fetches raw shipment records from a ledger reader, normalizes
// them and applies a declarative query. It is a read-only projection: it
// never writes to the ledger and never retries on its own, since retry
// policy belongs to the caller.
type Pipeline struct {
	logger  logger.Logger
	metrics *metrics.Registry
}

// New creates a query pipeline. metrics may be nil in tests.
func New(logger logger.Logger, metrics *metrics.Registry) *Pipeline {
	return &Pipeline{
		logger:  logger,
		metrics: metrics,
	}
}

// Query runs the full pipeline: fetch, normalize, filter, sort, paginate.
// The data source is passed in explicitly rather than held as ambient state
// so every call names the session it reads through.
func (p *Pipeline) Query(ctx context.Context, source ledger.Reader, scope Scope, cfg QueryConfig) (*Page, error) {
	if p.metrics != nil {
		p.metrics.QueriesTotal.Inc()
	}

	records, err := p.fetchRaw(ctx, source, scope)

	if err != nil {
		if p.metrics != nil {
			p.metrics.QueryFailures.Inc()
		}
		return nil, err
	}

	page, err := ApplyQuery(records, cfg)

	if err != nil {
		if p.metrics != nil {
			p.metrics.QueryFailures.Inc()
		}
		return nil, err
	}

	return page, nil
}

// FetchOne returns the display form of a single shipment.
func (p *Pipeline) FetchOne(ctx context.Context, source ledger.Reader, supplier string, index int64) (*models.DisplayShipmentRecord, error) {
	if source == nil {
		return nil, errors.NewSourceUnavailableError("no ledger data source bound")
	}

	raw, err := source.GetShipment(ctx, supplier, index)

	if err != nil {
		return nil, asFetchError(err)
	}

	display := Normalize(raw)

	return &display, nil
}

// fetchRaw fetches the scoped records in ledger-storage order. The
// per-supplier case fans out one fetch per index and joins on all of them;
// a single failed fetch fails the whole batch, partial results are never
// returned.
func (p *Pipeline) fetchRaw(ctx context.Context, source ledger.Reader, scope Scope) ([]*models.RawShipmentRecord, error) {
	if source == nil {
		return nil, errors.NewSourceUnavailableError("no ledger data source bound")
	}

	if !scope.IsGlobal() && scope.Supplier == "" {
		return nil, errors.NewInvalidInputError("supplier scope requires an address")
	}

	start := time.Now()

	var records []*models.RawShipmentRecord
	var err error

	if scope.IsGlobal() {
		records, err = source.GetAllShipments(ctx)
	} else {
		records, err = p.fetchSupplier(ctx, source, scope.Supplier)
	}

	if err != nil {
		return nil, asFetchError(err)
	}

	if p.metrics != nil {
		p.metrics.RecordsFetched.Add(float64(len(records)))
		p.metrics.FetchLatencySec.Observe(time.Since(start).Seconds())
	}

	p.logger.Debug("Fetched shipment records",
		"count", len(records),
		"supplier", scope.Supplier,
		"duration", time.Since(start))

	return records, nil
}

// fetchSupplier reads the supplier's array length and fetches every index
// concurrently, preserving ledger insertion order in the result.
func (p *Pipeline) fetchSupplier(ctx context.Context, source ledger.Reader, supplier string) ([]*models.RawShipmentRecord, error) {
	count, err := source.GetShipmentCount(ctx, supplier)

	if err != nil {
		return nil, err
	}

	records := make([]*models.RawShipmentRecord, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i := int64(0); i < count; i++ {
		index := i

		g.Go(func() error {
			record, err := source.GetShipment(gctx, supplier, index)

			if err != nil {
				return err
			}

			records[index] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

// asFetchError folds an arbitrary source error into the pipeline taxonomy.
// Errors already typed as source-unavailable or normalization pass through.
func asFetchError(err error) error {
	if stderrors.Is(err, errors.ErrSourceUnavailable) ||
		stderrors.Is(err, errors.ErrNormalization) ||
		stderrors.Is(err, errors.ErrFetchFailed) {
		return err
	}

	return errors.NewFetchFailedError(err.Error())
}
