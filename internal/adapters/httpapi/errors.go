package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"heelbid-auction-service/internal/domain/shared"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrAuctionNotFound), errors.Is(err, shared.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrBidTooLow):
		return http.StatusConflict
	case errors.Is(err, shared.ErrAuctionClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrInvalidStartingPrice),
		errors.Is(err, shared.ErrInvalidDuration),
		errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrEmptyContent),
		errors.Is(err, shared.ErrRecipientNeeded),
		errors.Is(err, shared.ErrInvalidRequest),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON serializes data with the given status
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		}
	}
}

// writeError writes err as an ErrorResponse. Store failures are logged and hidden from the client.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	response := ErrorResponse{Error: err.Error()}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		response.Error = shared.ErrInvalidRequest.Error()
		response.Details = make(map[string]string, len(validationErrs))
		for _, fieldErr := range validationErrs {
			response.Details[fieldErr.Field()] = fieldErr.Tag()
		}
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
		response.Error = "internal server error"
	}

	writeJSON(w, status, response)
}

// resultBody is the { "error": null | string } body of placeBid and sendNotification
func resultBody(err error) map[string]interface{} {
	if err == nil {
		return map[string]interface{}{"error": nil}
	}
	if statusFor(err) == http.StatusInternalServerError {
		return map[string]interface{}{"error": "internal server error"}
	}
	return map[string]interface{}{"error": err.Error()}
}
