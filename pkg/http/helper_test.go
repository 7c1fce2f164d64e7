package http

import (
	"net/http"
	"net/http/httptest"
	apperrors "slotkeeper/pkg/errors"
	"strings"
	"testing"
)

func TestExtractDateRange(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		from    string
		to      string
		wantErr bool
	}{
		{"both present", "?from=2024-06-01&to=2024-06-07", "2024-06-01", "2024-06-07", false},
		{"missing to", "?from=2024-06-01", "", "", true},
		{"missing both", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/slots"+tt.query, nil)
			from, to, err := ExtractDateRange(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if from != tt.from || to != tt.to {
				t.Errorf("got (%s, %s), expected (%s, %s)", from, to, tt.from, tt.to)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Token string `json:"token"`
	}

	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"valid", `{"token":"abc"}`, ""},
		{"empty", ``, apperrors.CodeInvalidInput},
		{"unknown field", `{"token":"abc","extra":1}`, apperrors.CodeInvalidInput},
		{"two objects", `{"token":"a"}{"token":"b"}`, apperrors.CodeInvalidInput},
		{"malformed", `{"token":`, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var dst body
			err := DecodeJSON(r, &dst)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Token != "abc" {
					t.Errorf("token = %q", dst.Token)
				}
				return
			}
			if got := apperrors.AsAppError(err).Code; got != tt.wantCode {
				t.Errorf("code = %s, expected %s", got, tt.wantCode)
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"`+strings.Repeat("a", 64)+`"}`))
	r.Body = http.MaxBytesReader(rec, r.Body, 16)

	var dst struct {
		Token string `json:"token"`
	}
	err := DecodeJSON(r, &dst)
	if got := apperrors.AsAppError(err).StatusCode(); got != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, expected 413", got)
	}
}
