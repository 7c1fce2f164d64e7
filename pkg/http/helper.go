package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	apperrors "slotkeeper/pkg/errors"
	"strings"
)

// ExtractDateRange reads the required from/to query parameters. Their format
// is checked by the caller.
func ExtractDateRange(r *http.Request) (string, string, error) {
	query := r.URL.Query()

	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))
	if from == "" || to == "" {
		return "", "", apperrors.InvalidInput("query parameters 'from' and 'to' are required")
	}
	return from, to, nil
}

// DecodeJSON decodes a single JSON object from the request body, rejecting
// unknown fields and trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return apperrors.New(apperrors.CodeBadRequest, "request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("request body cannot be empty")
		default:
			return apperrors.InvalidInput(fmt.Sprintf("invalid JSON body: %v", err))
		}
	}
	if decoder.More() {
		return apperrors.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}
