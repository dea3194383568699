package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"time"

	"context"

	"github.com/bct-labs/material-tracking-api/internal/config"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/pkg/circuitbreaker"
	"github.com/bct-labs/material-tracking-api/pkg/errors"
	"github.com/bct-labs/material-tracking-api/pkg/logger"
	"github.com/bct-labs/material-tracking-api/pkg/retry"
)

// GatewayClient talks to the contract gateway, an HTTP service that proxies
// read calls and signed write transactions to the material-tracking contract.
// Reads are retried; writes are never retried here because a duplicated write
// would duplicate its financial side effect.
type GatewayClient struct {
	baseURL         string
	contractAddress string
	chainID         int64
	httpClient      *http.Client
	logger          logger.Logger
	retryConfig     *retry.RetryConfig
	breaker         *circuitbreaker.CircuitBreaker
}

// shipmentPayload is the gateway's wire form of a shipment. Quantity,
// distance and price are decimal strings because they exceed int64.
type shipmentPayload struct {
	Supplier     string `json:"supplier"`
	Contractor   string `json:"contractor"`
	MaterialType string `json:"material_type"`
	Quantity     string `json:"quantity"`
	PickupTime   int64  `json:"pickup_time"`
	DeliveryTime int64  `json:"delivery_time"`
	Distance     string `json:"distance"`
	Price        string `json:"price"`
	Status       int    `json:"status"`
	IsPaid       bool   `json:"is_paid"`
}

// errorEnvelope is the gateway's error shape, present on non-2xx responses
// and on reverted calls.
type errorEnvelope struct {
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type countPayload struct {
	Count int64 `json:"count"`
	errorEnvelope
}

type shipmentsPayload struct {
	Shipments []shipmentPayload `json:"shipments"`
	errorEnvelope
}

type chainPayload struct {
	ChainID int64 `json:"chain_id"`
	errorEnvelope
}

type txPayload struct {
	TxHash        string `json:"tx_hash"`
	Supplier      string `json:"supplier"`
	ShipmentIndex int64  `json:"shipment_index"`
	errorEnvelope
}

// NewGatewayClient creates a gateway client for the configured contract.
func NewGatewayClient(cfg config.LedgerConfig, logger logger.Logger) *GatewayClient {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	retryConfig := &retry.RetryConfig{
		MaxAttempts: 3,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
			JitterFactor:    0.2,
		},
		Logger: logger,
		RetryableErrors: []error{
			errors.ErrTimeout,
			errors.ErrTemporaryFailure,
			errors.ErrServiceUnavailable,
		},
	}

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 2,
	})

	return &GatewayClient{
		baseURL:         cfg.GatewayURL,
		contractAddress: cfg.ContractAddress,
		chainID:         cfg.ChainID,
		httpClient:      httpClient,
		logger:          logger,
		retryConfig:     retryConfig,
		breaker:         breaker,
	}
}

// Breaker exposes the circuit breaker for the admin endpoints.
func (c *GatewayClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// VerifyChain checks that the gateway is connected to the expected chain.
// The comparison is numeric; the configured ID and the reported ID are both
// int64, so a testnet/mainnet mix-up fails loudly at startup.
func (c *GatewayClient) VerifyChain(ctx context.Context) error {
	var payload chainPayload

	if err := c.get(ctx, fmt.Sprintf("%s/api/v1/chain", c.baseURL), &payload); err != nil {
		return err
	}

	if payload.ChainID != c.chainID {
		return errors.NewInvalidInputError(
			fmt.Sprintf("gateway is on chain %d, expected %d", payload.ChainID, c.chainID))
	}

	return nil
}

// GetShipment returns the shipment at the given index of a supplier's array.
func (c *GatewayClient) GetShipment(ctx context.Context, supplier string, index int64) (*models.RawShipmentRecord, error) {
	url := fmt.Sprintf("%s/api/v1/contracts/%s/suppliers/%s/shipments/%d",
		c.baseURL, c.contractAddress, supplier, index)

	var payload struct {
		shipmentPayload
		errorEnvelope
	}

	if err := c.get(ctx, url, &payload); err != nil {
		c.logger.Error("Failed to fetch shipment",
			"error", err,
			"supplier", supplier,
			"index", index)
		return nil, err
	}

	return decodeShipment(&payload.shipmentPayload)
}

// GetShipmentCount returns the length of a supplier's shipment array.
func (c *GatewayClient) GetShipmentCount(ctx context.Context, supplier string) (int64, error) {
	url := fmt.Sprintf("%s/api/v1/contracts/%s/suppliers/%s/shipments/count",
		c.baseURL, c.contractAddress, supplier)

	var payload countPayload

	if err := c.get(ctx, url, &payload); err != nil {
		c.logger.Error("Failed to fetch shipment count", "error", err, "supplier", supplier)
		return 0, err
	}

	return payload.Count, nil
}

// GetAllShipments returns every shipment on the ledger, in ledger order.
func (c *GatewayClient) GetAllShipments(ctx context.Context) ([]*models.RawShipmentRecord, error) {
	url := fmt.Sprintf("%s/api/v1/contracts/%s/shipments", c.baseURL, c.contractAddress)

	var payload shipmentsPayload

	if err := c.get(ctx, url, &payload); err != nil {
		c.logger.Error("Failed to fetch all shipments", "error", err)
		return nil, err
	}

	records := make([]*models.RawShipmentRecord, 0, len(payload.Shipments))

	for i := range payload.Shipments {
		record, err := decodeShipment(&payload.Shipments[i])

		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// CreateShipment submits the contract's create transaction.
func (c *GatewayClient) CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*TxResult, error) {
	url := fmt.Sprintf("%s/api/v1/contracts/%s/shipments", c.baseURL, c.contractAddress)

	body := map[string]interface{}{
		"contractor":    req.Contractor,
		"material_type": req.MaterialType,
		"quantity":      req.Quantity.String(),
		"pickup_time":   req.PickupTime,
		"distance":      req.Distance.String(),
		"price":         req.PriceWei.String(),
	}

	return c.submitTx(ctx, url, body)
}

// StartShipment submits the contract's start transaction for a shipment.
func (c *GatewayClient) StartShipment(ctx context.Context, supplier, contractor string, index int64) (*TxResult, error) {
	url := fmt.Sprintf("%s/api/v1/contracts/%s/suppliers/%s/shipments/%d/start",
		c.baseURL, c.contractAddress, supplier, index)

	return c.submitTx(ctx, url, map[string]interface{}{"contractor": contractor})
}

// CompleteShipment submits the contract's complete transaction, releasing the
// escrowed payment to the supplier.
func (c *GatewayClient) CompleteShipment(ctx context.Context, supplier, contractor string, index int64) (*TxResult, error) {
	url := fmt.Sprintf("%s/api/v1/contracts/%s/suppliers/%s/shipments/%d/complete",
		c.baseURL, c.contractAddress, supplier, index)

	return c.submitTx(ctx, url, map[string]interface{}{"contractor": contractor})
}

// get performs a read call with retry behind the circuit breaker.
func (c *GatewayClient) get(ctx context.Context, url string, out interface{}) error {
	retryFunc := func() error {
		if !c.breaker.Allow() {
			return errors.NewTemporaryError("ledger gateway circuit breaker is open")
		}

		err := c.doJSON(ctx, http.MethodGet, url, nil, out)

		if err != nil {
			if errors.IsRetryable(err) {
				c.breaker.Failure()
			}
			return err
		}

		c.breaker.Success()
		return nil
	}

	return retry.Retry(ctx, retryFunc, c.retryConfig)
}

// submitTx performs a write call. No retry: a duplicated transaction could
// double-spend the escrow.
func (c *GatewayClient) submitTx(ctx context.Context, url string, body interface{}) (*TxResult, error) {
	if !c.breaker.Allow() {
		return nil, errors.NewTemporaryError("ledger gateway circuit breaker is open")
	}

	var payload txPayload

	if err := c.doJSON(ctx, http.MethodPost, url, body, &payload); err != nil {
		if errors.IsRetryable(err) {
			c.breaker.Failure()
		}
		c.logger.Error("Ledger write failed", "error", err, "url", url)
		return nil, err
	}

	c.breaker.Success()

	return &TxResult{
		TxHash:        payload.TxHash,
		Supplier:      payload.Supplier,
		ShipmentIndex: payload.ShipmentIndex,
	}, nil
}

// doJSON performs one HTTP round trip and decodes the JSON response.
func (c *GatewayClient) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reqBody io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)

		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
		}

		reqBody = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)

	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)

	if err != nil {
		// Check for timeout
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return errors.NewTimeoutError("ledger gateway request timed out")
		}
		return errors.NewTemporaryError(fmt.Sprintf("failed to reach ledger gateway: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)

	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to read response body: %v", err))
	}

	// Check for non-200 status codes
	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
			return errors.NewTimeoutError("ledger gateway request timed out")
		}

		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusInternalServerError {
			return errors.NewTemporaryError(fmt.Sprintf("ledger gateway error: %d", resp.StatusCode))
		}

		var envelope errorEnvelope

		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != "" {
			// Reverted calls come back as client errors with a reason.
			return errors.NewFetchFailedError(envelope.Error)
		}

		return errors.NewAppError(
			errors.ErrFetchFailed,
			fmt.Sprintf("ledger gateway returned error: %d", resp.StatusCode),
			resp.StatusCode,
			false,
		)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewFetchFailedError(fmt.Sprintf("failed to parse gateway response: %v", err))
	}

	return nil
}

// decodeShipment converts a wire payload into a raw record. A numeric field
// the gateway encodes outside base-10 is an upstream bug, reported as a
// normalization failure rather than retried.
func decodeShipment(p *shipmentPayload) (*models.RawShipmentRecord, error) {
	quantity, ok := new(big.Int).SetString(p.Quantity, 10)

	if !ok {
		return nil, errors.NewNormalizationError(fmt.Sprintf("invalid quantity encoding: %q", p.Quantity))
	}

	distance, ok := new(big.Int).SetString(p.Distance, 10)

	if !ok {
		return nil, errors.NewNormalizationError(fmt.Sprintf("invalid distance encoding: %q", p.Distance))
	}

	price, ok := new(big.Int).SetString(p.Price, 10)

	if !ok {
		return nil, errors.NewNormalizationError(fmt.Sprintf("invalid price encoding: %q", p.Price))
	}

	return &models.RawShipmentRecord{
		Supplier:     p.Supplier,
		Contractor:   p.Contractor,
		MaterialType: p.MaterialType,
		Quantity:     quantity,
		PickupTime:   p.PickupTime,
		DeliveryTime: p.DeliveryTime,
		Distance:     distance,
		Price:        price,
		Status:       p.Status,
		IsPaid:       p.IsPaid,
	}, nil
}
