package errors

import (
	"encoding/json"
	"net/http"
)

// DefaultRetryAfter is sent with retryable errors unless the caller already
// set a Retry-After header.
const DefaultRetryAfter = "1"

func WriteError(w http.ResponseWriter, err error) {
	appErr := AsAppError(err)
	h := w.Header()
	h.Set("Content-Type", "application/json")
	if appErr.Retryable() && h.Get("Retry-After") == "" {
		h.Set("Retry-After", DefaultRetryAfter)
	}
	w.WriteHeader(appErr.StatusCode())

	// Nothing can be recovered after WriteHeader.
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}
