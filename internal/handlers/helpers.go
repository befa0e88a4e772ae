package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/sandrun/internal/common"
)

// API error codes and their HTTP status mapping
const (
	CodeValidationError = "validation_error"
	CodePolicyDenied    = "policy_denied"
	CodeNotFound        = "not_found"
	CodeLogsUnavailable = "logs_unavailable"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

var codeStatus = map[string]int{
	CodeValidationError: http.StatusBadRequest,
	CodePolicyDenied:    http.StatusForbidden,
	CodeNotFound:        http.StatusNotFound,
	CodeLogsUnavailable: http.StatusConflict,
	CodeRateLimited:     http.StatusTooManyRequests,
	CodeInternal:        http.StatusInternalServerError,
}

// errorBody is the shared error envelope
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error         errorBody `json:"error"`
	RequestID     string    `json:"request_id"`
	ServerTimeUTC string    `json:"server_time_utc"`
}

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteAPIError writes the error envelope for a known code. Unknown codes
// fall back to 400.
func WriteAPIError(w http.ResponseWriter, requestID, code, message string, details map[string]any) error {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusBadRequest
	}
	if requestID == "" {
		requestID = common.NewRequestID()
	}
	return WriteJSON(w, status, errorEnvelope{
		Error:         errorBody{Code: code, Message: message, Details: details},
		RequestID:     requestID,
		ServerTimeUTC: common.NowUTC(),
	})
}
