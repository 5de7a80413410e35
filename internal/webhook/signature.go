// Package webhook delivers the signed task-outcome callback.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// GenerateSignature computes the hex HMAC-SHA256 of the payload keyed by the
// api key. Receivers validate it against the exact body bytes together with
// the timestamp header.
func GenerateSignature(payload []byte, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature reports whether signature matches the payload under the
// api key, in constant time.
func ValidateSignature(payload []byte, apiKey, signature string) bool {
	expected := GenerateSignature(payload, apiKey)
	return hmac.Equal([]byte(expected), []byte(signature))
}
