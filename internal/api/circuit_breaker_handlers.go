package api

import (
	"net/http"
)

// getCircuitBreakerStatusHandler returns the state of the ledger gateway's
// circuit breaker
func (s *Server) getCircuitBreakerStatusHandler(w http.ResponseWriter, r *http.Request) {
	metrics := s.ledgerClient.Breaker().GetMetrics()

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}

// resetCircuitBreakerHandler forces the gateway circuit breaker closed
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	s.ledgerClient.Breaker().Reset()

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
		},
	})
}
