package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cat-control/ccc/internal/adapter"
)

// WriteAdapterError maps a normalized adapter error to its HTTP status
// and writes the error envelope.
//
// Value errors are the client's fault (400). NOT_CONNECTED is a state
// conflict the client can resolve by connecting first (409). Everything
// that went wrong on the serial side of the container maps to 502, and
// a command that outran its timeout class maps to 504.
func WriteAdapterError(w http.ResponseWriter, err error) {
	code, status, message := classify(err)

	var details interface{}
	var catErr *adapter.CATError
	if errors.As(err, &catErr) && catErr.Details != nil {
		details = map[string]interface{}{"detail": catErr.Details}
	}

	WriteError(w, status, code, message, details)
}

func classify(err error) (code string, status int, message string) {
	switch {
	case errors.Is(err, adapter.ErrValue):
		return "INVALID_VALUE", http.StatusBadRequest, "Parameter value is invalid or out of range"
	case errors.Is(err, adapter.ErrNotConnected):
		return "NOT_CONNECTED", http.StatusConflict, "Not connected to the transceiver"
	case errors.Is(err, adapter.ErrConnection):
		return "CONNECTION", http.StatusBadGateway, "Serial connection failed"
	case errors.Is(err, adapter.ErrIO):
		return "IO", http.StatusBadGateway, "Serial I/O failed"
	case errors.Is(err, adapter.ErrProtocol):
		return "PROTOCOL", http.StatusBadGateway, "Malformed device response"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT", http.StatusGatewayTimeout, "Command timed out"
	default:
		return "INTERNAL", http.StatusInternalServerError, "Internal server error"
	}
}
