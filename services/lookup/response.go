package lookup

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Response is the JSON body returned by the search endpoints.
type Response struct {
	Success bool     `json:"success"`
	Result  []Record `json:"result,omitempty"`
	Message string   `json:"message,omitempty"`
}

// NewResponse converts a Search result into the HTTP status and body sent to clients.
// A lookup that finds nothing is a normal answer, not a server error.
func NewResponse(records []Record, err error) (int, Response) {
	if err == nil {
		return http.StatusOK, Response{Success: true, Result: records}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusOK, Response{Message: "MAC address not found."}
	case errors.Is(err, ErrInputMissing):
		return http.StatusBadRequest, Response{Message: "MAC address is required."}
	case errors.Is(err, ErrInvalidMACFormat):
		return http.StatusBadRequest, Response{Message: "Invalid MAC address format."}
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable, Response{Message: "Database connection failed: " + errors.UnwrapAll(err).Error()}
	case errors.Is(err, ErrQueryFailed):
		return http.StatusInternalServerError, Response{Message: "Error executing query."}
	default:
		return http.StatusInternalServerError, Response{Message: "Internal error."}
	}
}
