package service

import (
	"context"
	"fmt"

	"github.com/bct-labs/material-tracking-api/internal/ledger"
	"github.com/bct-labs/material-tracking-api/internal/metrics"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/internal/pipeline"
	"github.com/bct-labs/material-tracking-api/internal/repository"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// ShipmentService ties the query pipeline and the ledger write path
// together. Reads go through the pipeline and touch nothing but the ledger;
// writes submit a contract transaction and then record its hash plus an
// outbox event in one database transaction.
type ShipmentService struct {
	ledgerClient ledger.Client
	pipeline     *pipeline.Pipeline
	txRecordRepo *repository.TxRecordRepository
	outboxRepo   *repository.OutboxRepository
	metrics      *metrics.Registry
	logger       logger.Logger
}

// NewShipmentService creates a new ShipmentService instance
func NewShipmentService(
	ledgerClient ledger.Client,
	queryPipeline *pipeline.Pipeline,
	txRecordRepo *repository.TxRecordRepository,
	outboxRepo *repository.OutboxRepository,
	metrics *metrics.Registry,
	logger logger.Logger,
) *ShipmentService {
	return &ShipmentService{
		ledgerClient: ledgerClient,
		pipeline:     queryPipeline,
		txRecordRepo: txRecordRepo,
		outboxRepo:   outboxRepo,
		metrics:      metrics,
		logger:       logger,
	}
}

// Query runs a filtered, sorted, paginated shipment query.
func (s *ShipmentService) Query(ctx context.Context, scope pipeline.Scope, cfg pipeline.QueryConfig) (*pipeline.Page, error) {
	return s.pipeline.Query(ctx, s.ledgerClient, scope, cfg)
}

// GetShipment returns the display form of one shipment.
func (s *ShipmentService) GetShipment(ctx context.Context, supplier string, index int64) (*models.DisplayShipmentRecord, error) {
	return s.pipeline.FetchOne(ctx, s.ledgerClient, supplier, index)
}

// GetShipmentCount returns the number of shipments for a supplier.
func (s *ShipmentService) GetShipmentCount(ctx context.Context, supplier string) (int64, error) {
	return s.ledgerClient.GetShipmentCount(ctx, supplier)
}

// GetTxRecord returns the recorded transaction hash for a shipment, if the
// write path recorded one.
func (s *ShipmentService) GetTxRecord(ctx context.Context, supplier string, index int64) (*models.ShipmentTxRecord, error) {
	return s.txRecordRepo.GetByKey(ctx, supplier, index)
}

// GetTxRecordsBySupplier lists a supplier's recorded transaction hashes.
func (s *ShipmentService) GetTxRecordsBySupplier(ctx context.Context, supplier string) ([]*models.ShipmentTxRecord, error) {
	return s.txRecordRepo.GetBySupplier(ctx, supplier)
}

// CreateShipment submits the contract's create transaction and records its
// hash. The ledger write is never retried here; if recording the hash fails
// afterwards the ledger is still the source of truth, so the error is
// reported but the shipment exists.
func (s *ShipmentService) CreateShipment(ctx context.Context, req *ledger.CreateShipmentRequest) (*models.ShipmentTxRecord, error) {
	result, err := s.ledgerClient.CreateShipment(ctx, req)

	if err != nil {
		s.logger.Error("Failed to create shipment on ledger", "error", err, "contractor", req.Contractor)
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.LedgerWritesTotal.Inc()
	}

	record := models.NewShipmentTxRecord(result.Supplier, req.Contractor, result.ShipmentIndex, result.TxHash)

	if err := s.recordWrite(ctx, record, models.NewShipmentCreatedEvent); err != nil {
		return nil, err
	}

	return record, nil
}

// StartShipment submits the contract's start transaction for a shipment.
func (s *ShipmentService) StartShipment(ctx context.Context, supplier, contractor string, index int64) (*models.ShipmentTxRecord, error) {
	result, err := s.ledgerClient.StartShipment(ctx, supplier, contractor, index)

	if err != nil {
		s.logger.Error("Failed to start shipment on ledger",
			"error", err,
			"supplier", supplier,
			"index", index)
		return nil, fmt.Errorf("failed to start shipment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.LedgerWritesTotal.Inc()
	}

	record := models.NewShipmentTxRecord(supplier, contractor, index, result.TxHash)

	if err := s.recordWrite(ctx, record, models.NewShipmentStartedEvent); err != nil {
		return nil, err
	}

	return record, nil
}

// CompleteShipment submits the contract's complete transaction, which
// releases the escrowed payment on chain.
func (s *ShipmentService) CompleteShipment(ctx context.Context, supplier, contractor string, index int64) (*models.ShipmentTxRecord, error) {
	result, err := s.ledgerClient.CompleteShipment(ctx, supplier, contractor, index)

	if err != nil {
		s.logger.Error("Failed to complete shipment on ledger",
			"error", err,
			"supplier", supplier,
			"index", index)
		return nil, fmt.Errorf("failed to complete shipment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.LedgerWritesTotal.Inc()
	}

	record := models.NewShipmentTxRecord(supplier, contractor, index, result.TxHash)

	if err := s.recordWrite(ctx, record, models.NewShipmentCompletedEvent); err != nil {
		return nil, err
	}

	return record, nil
}

// recordWrite persists the tx record and its outbox event atomically.
func (s *ShipmentService) recordWrite(
	ctx context.Context,
	record *models.ShipmentTxRecord,
	newEvent func(*models.ShipmentTxRecord) (*models.OutboxMessage, error),
) (err error) {
	tx, err := s.txRecordRepo.BeginTx(ctx)

	if err != nil {
		return err
	}

	// Rollback transaction if any error occurs
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rbErr, "recordKey", record.RecordKey)
			}
		}
	}()

	if err = s.txRecordRepo.CreateInTx(tx, record); err != nil {
		return err
	}

	outboxMsg, err := newEvent(record)

	if err != nil {
		return err
	}

	if err = s.outboxRepo.CreateInTx(tx, outboxMsg); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err, "recordKey", record.RecordKey)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
