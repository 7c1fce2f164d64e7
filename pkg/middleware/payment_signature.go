package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"strings"
)

const PaymentSignatureHeader = "X-Payment-Signature"

// PaymentSignatureVerification admits a request only when its body carries a
// valid HMAC-SHA256 signature made with secret. An empty secret rejects
// everything.
func PaymentSignatureVerification(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logAndReject(w, log, r, "Payment webhook secret is not configured")
				return
			}

			signature := extractSignature(r)
			if signature == "" {
				logAndReject(w, log, r, "Missing "+PaymentSignatureHeader+" header")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				logAndReject(w, log, r, "Failed to read request body")
				return
			}

			if !verifySignature(body, signature, secret) {
				logAndReject(w, log, r, "Invalid webhook signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SignPayload returns the header value a sender puts on body.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func extractSignature(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(PaymentSignatureHeader))
	signature, _ := strings.CutPrefix(header, "sha256=")
	return signature
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}

func verifySignature(body []byte, receivedSignature string, secret string) bool {
	expected := strings.TrimPrefix(SignPayload(body, secret), "sha256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(receivedSignature)))
}

func logAndReject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Payment webhook verification failed",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	apperrors.WriteError(w, apperrors.Unauthorized("Invalid webhook signature"))
}
