package api

import (
	"net/http"
)

// getRateLimitsHandler returns the current rate limiter metrics
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	metrics := s.rateLimiter.GetMetrics()

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: metrics})
}
