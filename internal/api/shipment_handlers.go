package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/bct-labs/material-tracking-api/internal/ledger"
	"github.com/bct-labs/material-tracking-api/internal/models"
	"github.com/bct-labs/material-tracking-api/internal/pipeline"
	"github.com/bct-labs/material-tracking-api/internal/repository"
)

// queryShipmentsHandler runs a declarative query over every shipment on the
// ledger. The filter, sort and pagination settings come from the body.
func (s *Server) queryShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	s.runQuery(w, r, pipeline.GlobalScope())
}

// querySupplierShipmentsHandler runs a declarative query over one supplier's
// shipments.
func (s *Server) querySupplierShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.runQuery(w, r, pipeline.SupplierScope(vars["supplier"]))
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, scope pipeline.Scope) {
	ctx := r.Context()

	var cfg pipeline.QueryConfig
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&cfg); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	page, err := s.shipmentService.Query(ctx, scope, cfg)

	if err != nil {
		s.logger.Error("Shipment query failed", "error", err, "supplier", scope.Supplier)
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: page})
}

// getShipmentHandler returns the display form of a single shipment
func (s *Server) getShipmentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	supplier := vars["supplier"]

	index, err := strconv.ParseInt(vars["index"], 10, 64)

	if err != nil || index < 0 {
		s.respondWithError(w, http.StatusBadRequest, "Invalid shipment index")
		return
	}

	shipment, err := s.shipmentService.GetShipment(ctx, supplier, index)

	if err != nil {
		s.logger.Error("Failed to get shipment", "error", err, "supplier", supplier, "index", index)
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: shipment})
}

// getShipmentCountHandler returns the number of shipments for a supplier
func (s *Server) getShipmentCountHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	supplier := vars["supplier"]

	count, err := s.shipmentService.GetShipmentCount(ctx, supplier)

	if err != nil {
		s.logger.Error("Failed to get shipment count", "error", err, "supplier", supplier)
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]interface{}{"supplier": supplier, "count": count},
	})
}

// getTxRecordHandler returns the recorded transaction hash for a shipment
func (s *Server) getTxRecordHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	supplier := vars["supplier"]

	index, err := strconv.ParseInt(vars["index"], 10, 64)

	if err != nil || index < 0 {
		s.respondWithError(w, http.StatusBadRequest, "Invalid shipment index")
		return
	}

	record, err := s.shipmentService.GetTxRecord(ctx, supplier, index)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "No transaction record for shipment")
			return
		}
		s.logger.Error("Failed to get tx record", "error", err, "supplier", supplier, "index", index)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to get transaction record")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: record})
}

// getSupplierTxRecordsHandler lists every recorded transaction hash for a
// supplier, oldest shipment first
func (s *Server) getSupplierTxRecordsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	supplier := vars["supplier"]

	records, err := s.shipmentService.GetTxRecordsBySupplier(ctx, supplier)

	if err != nil {
		s.logger.Error("Failed to list tx records", "error", err, "supplier", supplier)
		s.respondWithError(w, http.StatusInternalServerError, "Failed to list transaction records")
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: records})
}

// createShipmentPayload is the request body for creating a shipment. The
// quantity, distance and price are decimal strings in whole units, ether in
// the price's case, and are scaled to the ledger's 18-decimal fixed point.
type createShipmentPayload struct {
	Contractor   string `json:"contractor"`
	MaterialType string `json:"material_type"`
	Quantity     string `json:"quantity"`
	PickupTime   int64  `json:"pickup_time"`
	Distance     string `json:"distance"`
	Price        string `json:"price"`
}

// createShipmentHandler submits a create transaction to the ledger
func (s *Server) createShipmentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload createShipmentPayload
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if payload.Contractor == "" || payload.MaterialType == "" {
		s.respondWithError(w, http.StatusBadRequest, "Contractor and material type are required")
		return
	}

	if payload.PickupTime <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "Pickup time must be a positive Unix timestamp")
		return
	}

	quantity, err := pipeline.ParseUnits(payload.Quantity)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid quantity")
		return
	}

	distance, err := pipeline.ParseUnits(payload.Distance)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid distance")
		return
	}

	price, err := pipeline.ParseUnits(payload.Price)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid price")
		return
	}

	req := &ledger.CreateShipmentRequest{
		Contractor:   payload.Contractor,
		MaterialType: payload.MaterialType,
		Quantity:     quantity,
		PickupTime:   payload.PickupTime,
		Distance:     distance,
		PriceWei:     price,
	}

	record, err := s.shipmentService.CreateShipment(ctx, req)

	if err != nil {
		s.logger.Error("Failed to create shipment", "error", err, "contractor", payload.Contractor)
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: record})
}

// startShipmentPayload identifies the contractor moving the shipment
type startShipmentPayload struct {
	Contractor string `json:"contractor"`
}

// startShipmentHandler submits a start transaction for a pending shipment
func (s *Server) startShipmentHandler(w http.ResponseWriter, r *http.Request) {
	s.writeShipmentState(w, r, s.shipmentService.StartShipment)
}

// completeShipmentHandler submits a complete transaction, which marks the
// shipment delivered and releases the escrowed payment
func (s *Server) completeShipmentHandler(w http.ResponseWriter, r *http.Request) {
	s.writeShipmentState(w, r, s.shipmentService.CompleteShipment)
}

func (s *Server) writeShipmentState(
	w http.ResponseWriter,
	r *http.Request,
	write func(ctx context.Context, supplier, contractor string, index int64) (*models.ShipmentTxRecord, error),
) {
	ctx := r.Context()
	vars := mux.Vars(r)
	supplier := vars["supplier"]

	index, err := strconv.ParseInt(vars["index"], 10, 64)

	if err != nil || index < 0 {
		s.respondWithError(w, http.StatusBadRequest, "Invalid shipment index")
		return
	}

	var payload startShipmentPayload
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if payload.Contractor == "" {
		s.respondWithError(w, http.StatusBadRequest, "Contractor is required")
		return
	}

	record, err := write(ctx, supplier, payload.Contractor, index)

	if err != nil {
		s.logger.Error("Shipment state change failed", "error", err, "supplier", supplier, "index", index)
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: record})
}
