package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/vaxpulse/internal/contracts"
)

// DataSourceHeader tells the client which source answered
const DataSourceHeader = "X-Data-Source"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps the error taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidMetric):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrExternalFetchFailed),
		errors.Is(err, contracts.ErrMalformedExternalPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
