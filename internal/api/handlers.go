package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/bct-labs/material-tracking-api/pkg/errors"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// PaginationResponse wraps a paged admin listing
type PaginationResponse struct {
	Items      interface{} `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Offset     int         `json:"offset"`
	Status     string      `json:"status,omitempty"`
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   "0.1.0",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithAppError maps a service error onto its HTTP status. Errors the
// service did not classify come back as a 500.
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError

	if errors.As(err, &appErr) {
		s.respondWithError(w, appErr.StatusCode, appErr.Message)
		return
	}

	s.respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
