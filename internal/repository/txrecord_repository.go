package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bct-labs/material-tracking-api/internal/database"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
)

// TxRecordRepository stores the transaction hashes of ledger writes, keyed
// by lowercase supplier address and shipment index. The read pipeline never
// touches this table; only the write path inserts.
type TxRecordRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewTxRecordRepository creates a new TxRecordRepository
func NewTxRecordRepository(db *database.Database, logger logger.Logger) *TxRecordRepository {
	return &TxRecordRepository{
		db:     db,
		logger: logger,
	}
}

// GetByKey retrieves the tx record for a supplier/index pair.
func (r *TxRecordRepository) GetByKey(ctx context.Context, supplier string, index int64) (*models.ShipmentTxRecord, error) {
	query := `
		SELECT id, record_key, supplier, contractor, shipment_index, tx_hash, recorded_at
		FROM shipment_tx_records
		WHERE record_key = $1
	`

	var record models.ShipmentTxRecord
	err := r.db.DB.GetContext(ctx, &record, query, models.TxRecordKey(supplier, index))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get tx record", "error", err, "supplier", supplier, "index", index)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &record, nil
}

// GetBySupplier retrieves all tx records for a supplier, oldest first.
func (r *TxRecordRepository) GetBySupplier(ctx context.Context, supplier string) ([]*models.ShipmentTxRecord, error) {
	query := `
		SELECT id, record_key, supplier, contractor, shipment_index, tx_hash, recorded_at
		FROM shipment_tx_records
		WHERE LOWER(supplier) = LOWER($1)
		ORDER BY shipment_index ASC
	`

	var records []*models.ShipmentTxRecord
	err := r.db.DB.SelectContext(ctx, &records, query, supplier)

	if err != nil {
		r.logger.Error("Failed to get tx records by supplier", "error", err, "supplier", supplier)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return records, nil
}

// BeginTx starts a database transaction.
func (r *TxRecordRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return tx, nil
}

// CreateInTx inserts a tx record within a transaction. An existing record
// for the same key is overwritten: a re-submitted ledger write supersedes
// the hash recorded for the earlier attempt.
func (r *TxRecordRepository) CreateInTx(tx *sqlx.Tx, record *models.ShipmentTxRecord) error {
	query := `
		INSERT INTO shipment_tx_records (id, record_key, supplier, contractor, shipment_index, tx_hash, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_key) DO UPDATE
		SET tx_hash = EXCLUDED.tx_hash, recorded_at = EXCLUDED.recorded_at
	`

	_, err := tx.Exec(
		query,
		record.ID,
		record.RecordKey,
		record.Supplier,
		record.Contractor,
		record.ShipmentIndex,
		record.TxHash,
		record.RecordedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create tx record in transaction: %w", err)
	}

	return nil
}
