package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// maxJSONBody caps request bodies that are decoded as JSON
const maxJSONBody = 1 << 20

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError translates a service error into its HTTP form.
// System errors are logged with their cause; a transport failure underneath
// one is answered with fixed connection wording instead of the cause text.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	cat := apperrors.Categorize(err)
	message := cat.Message
	if apperrors.IsSystemError(cat) {
		logging.FromContext(r.Context()).
			WithField("code", cat.Code).
			ErrorWithErr("request failed", err)
		message = apperrors.FriendlyMessage(cat)
	}
	respondError(w, cat.StatusCode, cat.Code, message, cat.Details)
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidParameterError("body", "request body is empty")
		}
		return apperrors.NewInvalidParameterError("body", err.Error())
	}
	return nil
}
